// Package generation defines the boundary between the task engine and the
// services that produce code artifacts for tasks. The CodeGenerator
// interface is implemented by the Gemini adapter in platform/gemini and by
// the offline TemplateGenerator in this package.
package generation
