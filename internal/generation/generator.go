package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/domain"
)

// GenerationRequest describes the task an artifact is generated for.
type GenerationRequest struct {
	TaskID      uuid.UUID
	Description string
	Type        domain.TaskType
}

// RequestFor builds a GenerationRequest from a task.
func RequestFor(task domain.Task) GenerationRequest {
	return GenerationRequest{
		TaskID:      task.ID,
		Description: task.Description,
		Type:        task.Type,
	}
}

// CodeGenerator produces a source artifact for a task. This interface
// serves as a boundary between the task engine and external AI/LLM services.
type CodeGenerator interface {
	// GenerateCode returns the artifact source for the request, or an error
	// (see errors.go for specific types).
	GenerateCode(ctx context.Context, req GenerationRequest) (string, error)
}

// CodeGeneratorFunc adapts a function to the CodeGenerator interface.
type CodeGeneratorFunc func(ctx context.Context, req GenerationRequest) (string, error)

// GenerateCode calls f.
func (f CodeGeneratorFunc) GenerateCode(ctx context.Context, req GenerationRequest) (string, error) {
	return f(ctx, req)
}
