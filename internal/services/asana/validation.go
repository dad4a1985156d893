package asana

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is matched by every ValidationError
var ErrInvalidRequest = errors.New("invalid import request")

// maxProjectsPerImport bounds one request body
const maxProjectsPerImport = 500

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// ValidateRequest checks an import request before it is sent
func ValidateRequest(req *ImportRequest) error {
	if strings.TrimSpace(req.AsanaWorkspaceGID) == "" {
		return &ValidationError{"asanaWorkspaceGid", "required"}
	}
	if strings.TrimSpace(req.TargetWorkspaceID) == "" {
		return &ValidationError{"targetWorkspaceId", "required"}
	}
	if len(req.ProjectGIDs) == 0 {
		return &ValidationError{"projectGids", "at least one project required"}
	}
	if len(req.ProjectGIDs) > maxProjectsPerImport {
		return &ValidationError{"projectGids", fmt.Sprintf("maximum %d projects allowed", maxProjectsPerImport)}
	}

	seen := make(map[string]bool, len(req.ProjectGIDs))
	for _, gid := range req.ProjectGIDs {
		if strings.TrimSpace(gid) == "" {
			return &ValidationError{"projectGids", "empty project id"}
		}
		if seen[gid] {
			return &ValidationError{"projectGids", fmt.Sprintf("duplicate project id: %s", gid)}
		}
		seen[gid] = true
	}

	return ValidateOptions(&req.Options)
}

// ValidateOptions checks option combinations. An empty strategy defaults to single.
func ValidateOptions(opts *ImportOptions) error {
	if opts.ClientMappingStrategy == "" {
		opts.ClientMappingStrategy = MappingSingle
	}
	switch opts.ClientMappingStrategy {
	case MappingSingle, MappingTeam:
	default:
		return &ValidationError{"clientMappingStrategy", "must be 'single' or 'team'"}
	}

	if opts.ClientMappingStrategy == MappingTeam && opts.TargetClientID != "" {
		return &ValidationError{"targetClientId", "only allowed with the 'single' strategy"}
	}
	return nil
}
