// Package configs provides the embedded configuration template for fluxrank.
//
// The template is embedded at build time with go:embed so it ships in every
// distribution. `fluxrank init` writes it to .fluxrank.yaml in the working
// directory; internal/config then loads that file over built-in defaults and
// under FLUXRANK_* environment overrides.
package configs

import _ "embed"

// ConfigTemplate is the annotated project configuration template written by
// `fluxrank init`.
//
//go:embed fluxrank.example.yaml
var ConfigTemplate string
