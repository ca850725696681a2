// Package slsconfig loads serverless.yml style documents and resolves the
// `${...}` references embedded in their scalar values.
//
// Supported references:
//   - `${self:a.b}` reads another value of the same document.
//   - `${opt:stage, 'dev'}` reads a caller supplied option.
//   - `${env:NAME, 'x'}` reads the process environment.
//   - `${file(./other.yml):a.b}` reads a value from another document, which
//     is resolved on its own first. .yml, .yaml, .json and .toml are decoded.
//   - `${sls:instanceId}` is replaced with a random id before parsing.
//
// cf, s3 and ssm references are recognised but left in place with a warning.
//
// Data flow:
//
//	afero.Fs -> prefill instanceId -> decode -> force -> resolve.Engine -> force -> Document
//
// Config memoizes the resolved tree. Env, EnvList and SetEnv derive process
// environments from provider.environment and functions.*.environment, and
// Manifest decodes the tree into typed structs.
package slsconfig
