// Package seed installs the system role and permission catalog at startup.
// The catalog can be overridden with a YAML file for deployments that need
// extra roles.
package seed
