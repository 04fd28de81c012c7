package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Label keys persist svm runtime metadata on the container itself, so
// the container is the single source of backend state — nothing on the
// host to drift out of sync. The "svm." prefix namespaces the keys away
// from labels set by Compose, VS Code, and other tooling.
const (
	// LabelPrefix is the common prefix for all svm labels.
	LabelPrefix = "svm."

	// LabelManagedBy marks containers owned by this CLI and is the
	// primary discovery filter.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject stores the absolute host path of the project the
	// runtime serves.
	LabelProject = LabelPrefix + "project"

	// LabelImage stores the base image the runtime was created from.
	// When the configured image changes, the recorded value tells the
	// status command that the runtime is out of date.
	LabelImage = LabelPrefix + "image"

	// LabelAppPort stores the published app server port.
	LabelAppPort = LabelPrefix + "app-port"

	// LabelCreatedAt stores the RFC3339 provisioning timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value of LabelManagedBy on every
// container this CLI creates.
const ManagedByValue = "svm"

// RuntimeInfo is the backend metadata reconstructed from a runtime
// container's labels, plus its current Docker state.
type RuntimeInfo struct {
	// ContainerID is the Docker container identifier.
	ContainerID string

	// ContainerName is the human-readable container name.
	ContainerName string

	// Project is the host project directory the runtime serves.
	Project string

	// Image is the base image recorded at creation time.
	Image string

	// AppPort is the published app server port.
	AppPort int

	// CreatedAt is the provisioning timestamp.
	CreatedAt time.Time

	// State is the container state reported by Docker
	// ("running", "exited", "created", ...).
	State string
}

// BuildLabels constructs the label set applied to a new runtime
// container. ParseLabels is its inverse.
func BuildLabels(project, image string, appPort int, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   project,
		LabelImage:     image,
		LabelAppPort:   strconv.Itoa(appPort),
		// UTC keeps the recorded timestamp independent of the host
		// timezone at creation time.
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs RuntimeInfo fields from a container's label
// map. Container identity and state are filled in by the caller from the
// Docker API listing.
//
// All svm labels are required; a container missing any of them was not
// created by this CLI (or was tampered with) and is rejected.
func ParseLabels(labels map[string]string) (*RuntimeInfo, error) {
	required := []string{LabelManagedBy, LabelProject, LabelImage, LabelAppPort, LabelCreatedAt}

	var missing []string
	for _, key := range required {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	appPort, err := strconv.Atoi(labels[LabelAppPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s=%q: %w", LabelAppPort, labels[LabelAppPort], err)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &RuntimeInfo{
		Project:   labels[LabelProject],
		Image:     labels[LabelImage],
		AppPort:   appPort,
		CreatedAt: createdAt,
	}, nil
}
