package awscreds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// DefaultRegion is used when neither the document nor the config file name one.
const DefaultRegion = "us-east-1"

var (
	// ErrNoCredentialsFile is returned when the credentials file is absent.
	ErrNoCredentialsFile = errors.New("awscreds: credentials file not found")
	// ErrEmptyCredentialsFile is returned when the credentials file has no content.
	ErrEmptyCredentialsFile = errors.New("awscreds: credentials file is empty")

	sectionPattern = regexp.MustCompile(`(?m)^[ \t]*\[[ \t]*(?:profile[ \t]+)?([^\]]*?)[ \t]*\][ \t]*$`)
)

// Credentials holds the values scraped for one profile.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Env renders the credentials as AWS_* variables.
func (c Credentials) Env() map[string]string {
	region := c.Region
	if region == "" {
		region = DefaultRegion
	}
	return map[string]string{
		"AWS_ACCESS_KEY_ID":     c.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": c.SecretAccessKey,
		"AWS_REGION":            region,
	}
}

// DefaultDir returns ~/.aws.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aws"
	}
	return filepath.Join(home, ".aws")
}

// Load reads `<dir>/credentials` and, when present, `<dir>/config`. The bool
// result is false when the profile has no key pair.
func Load(fs afero.Fs, dir, profile string) (Credentials, bool, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = DefaultDir()
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}

	credsPath := filepath.Join(dir, "credentials")
	creds, err := readFile(fs, credsPath, ErrNoCredentialsFile)
	if err != nil {
		return Credentials{}, false, err
	}
	if strings.TrimSpace(creds) == "" {
		return Credentials{}, false, fmt.Errorf("%w: %s", ErrEmptyCredentialsFile, credsPath)
	}

	section, ok := findSection(creds, profile)
	if !ok {
		return Credentials{}, false, nil
	}
	result := Credentials{
		AccessKeyID:     lookupKey(section, "aws_access_key_id"),
		SecretAccessKey: lookupKey(section, "aws_secret_access_key"),
		Region:          lookupKey(section, "region"),
	}
	if result.AccessKeyID == "" || result.SecretAccessKey == "" {
		return Credentials{}, false, nil
	}

	if result.Region == "" {
		config, err := readFile(fs, filepath.Join(dir, "config"), nil)
		if err != nil {
			return Credentials{}, false, err
		}
		if section, ok := findSection(config, profile); ok {
			result.Region = lookupKey(section, "region")
		}
	}
	if result.Region == "" {
		result.Region = DefaultRegion
	}
	return result, true, nil
}

// readFile returns the file content with CRLF folded. An absent file yields
// missing, or an empty string when missing is nil.
func readFile(fs afero.Fs, path string, missing error) (string, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", fmt.Errorf("awscreds: stat %s: %w", path, err)
	}
	if !exists {
		if missing == nil {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s", missing, path)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("awscreds: read %s: %w", path, err)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// findSection returns the body of `[profile]` or `[profile name]`.
func findSection(content, profile string) (string, bool) {
	headers := sectionPattern.FindAllStringSubmatchIndex(content, -1)
	for i, loc := range headers {
		if strings.TrimSpace(content[loc[2]:loc[3]]) != profile {
			continue
		}
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		return content[loc[1]:end], true
	}
	return "", false
}

func lookupKey(section, key string) string {
	pattern := regexp.MustCompile(`(?mi)^[ \t]*` + regexp.QuoteMeta(key) + `[ \t]*=[ \t]*(.*?)[ \t]*$`)
	match := pattern.FindStringSubmatch(section)
	if match == nil {
		return ""
	}
	return match[1]
}
