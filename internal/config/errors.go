package config

import "fmt"

// YamlSyntaxError wraps a parse failure in a specific config file.
type YamlSyntaxError struct {
	File  string
	Cause error
}

func (e *YamlSyntaxError) Error() string {
	return fmt.Sprintf("yaml syntax error in %s: %v", e.File, e.Cause)
}

func (e *YamlSyntaxError) Unwrap() error { return e.Cause }

// SchemaIssue is one field-level validation failure.
type SchemaIssue struct {
	Path string
	Msg  string
}

// SchemaValidationError reports one or more schema violations in a file.
type SchemaValidationError struct {
	File   string
	Issues []SchemaIssue
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed in %s: %d issue(s)", e.File, len(e.Issues))
}

// FleetCycleError reports a cycle detected in the sub-fleet DAG.
type FleetCycleError struct {
	Chain []string
}

func (e *FleetCycleError) Error() string {
	return fmt.Sprintf("fleet cycle detected: %v", e.Chain)
}

// FleetNameCollisionError reports two sibling sub-fleets resolving to the same name.
type FleetNameCollisionError struct {
	Name  string
	Paths []string
}

func (e *FleetNameCollisionError) Error() string {
	return fmt.Sprintf("fleet name collision on %q between %v", e.Name, e.Paths)
}

// DuplicateQualifiedAgentError reports two agents resolving to the same qualified name.
type DuplicateQualifiedAgentError struct {
	QualifiedName string
}

func (e *DuplicateQualifiedAgentError) Error() string {
	return fmt.Sprintf("duplicate qualified agent name %q", e.QualifiedName)
}

// UndefinedVariableError reports an env var referenced without a default that
// has no value.
type UndefinedVariableError struct {
	Name string
	Path string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q at %s", e.Name, e.Path)
}
