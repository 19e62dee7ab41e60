// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

const prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuid>
// Example: job-9f1c2d3e-4a5b-6c7d-8e9f-0a1b2c3d4e5f
func Generate() string {
	return prefix + uuid.NewString()
}
