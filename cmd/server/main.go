// Package main is the entry point for the TaskFlow API server, which serves
// the real-time comment channel of each task.
//
// # Basic Usage
//
// Start the server:
//
//	taskflow-api serve --config config.yaml
//
// Issue a development access token:
//
//	taskflow-api token --user-id 42
//
// Configuration comes from an optional YAML file and TASKFLOW_-prefixed
// environment variables, e.g. TASKFLOW_DATABASE_URL and
// TASKFLOW_AUTH_JWT_SECRET.
package main

import (
	"os"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
