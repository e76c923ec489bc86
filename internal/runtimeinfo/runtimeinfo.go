// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runtimeinfo detects the service identity and cloud project of the
// current process from well-known environment variables, falling back to the
// GCE metadata server when running on Google Cloud. The jsonwslog handler
// uses the result to enrich emitted records with a service context.
package runtimeinfo

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
)

// Info captures the detected runtime identity.
type Info struct {
	// ProjectID is the cloud project the process runs in, when known.
	ProjectID string
	// Service is the deployed service name, when known.
	Service string
	// Version is the deployed service revision or version, when known.
	Version string
}

var (
	detected     Info
	detectedOnce sync.Once
)

// metadataTimeout bounds the metadata server lookup so detection stays fast
// off-GCE and on networks that black-hole the link-local address.
const metadataTimeout = 2 * time.Second

// Detect returns the runtime identity, computing it at most once per process.
func Detect() Info {
	detectedOnce.Do(func() {
		detected = detect()
	})
	return detected
}

func detect() Info {
	var info Info

	info.ProjectID = firstNonEmpty(
		os.Getenv("JSONW_PROJECT_ID"),
		os.Getenv("GOOGLE_CLOUD_PROJECT"),
		os.Getenv("GCLOUD_PROJECT"),
		os.Getenv("GCP_PROJECT"),
	)

	// Cloud Run services and Cloud Functions gen2 share K_SERVICE/K_REVISION.
	info.Service = firstNonEmpty(
		os.Getenv("K_SERVICE"),
		os.Getenv("GAE_SERVICE"),
		os.Getenv("SERVICE_NAME"),
	)
	info.Version = firstNonEmpty(
		os.Getenv("K_REVISION"),
		os.Getenv("GAE_VERSION"),
		os.Getenv("SERVICE_VERSION"),
	)

	if info.ProjectID == "" && metadata.OnGCE() {
		ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
		defer cancel()
		if id, err := metadata.ProjectIDWithContext(ctx); err == nil {
			info.ProjectID = strings.TrimSpace(id)
		}
	}

	return info
}

// firstNonEmpty returns the first value that is non-empty after trimming.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
