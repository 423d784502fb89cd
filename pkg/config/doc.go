// Package config loads and validates the run configuration of a deployment.
//
// A RunConfig is read from an optional YAML file and then overridden by
// command line flags. Validation uses struct tags checked by
// go-playground/validator, followed by cross-field checks the tags cannot
// express (a sensitive variable file requires a password, for instance).
//
// Example configuration:
//
//	package_directory: /var/lib/deploy/packages/web-1.2.0
//	variable_files:
//	  - variables.yaml
//	  - overrides.toml
//	sensitive_variables:
//	  file: secrets.enc
//	  password_env: DEPLOY_SECRETS_PASSWORD
//	report: "-"
//	retry:
//	  max_retries: 10000
//	  time_limit: 1m
//	telemetry:
//	  logging:
//	    level: info
//	    format: console
package config
