// ABOUTME: Parameter specifications describing the named arguments a tool accepts.
// ABOUTME: Carries coarse type hints and either a default value or the Required sentinel.

package toolbox

// ParamType is the coarse semantic type advertised for a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
	TypeEnum    ParamType = "enum"
)

// requiredMarker is the type of the Required sentinel.
type requiredMarker struct{}

// Required is used as a ParameterSpec default to mean the caller must supply a value.
var Required any = requiredMarker{}

// RequiredLabel is how the Required sentinel is rendered in manifests.
const RequiredLabel = "REQUIRED"

// ParameterSpec describes one named argument of a tool.
type ParameterSpec struct {
	Name        string
	Type        ParamType
	Description string
	Enum        []string // allowed values when Type is TypeEnum
	Default     any      // concrete default, nil (null default), or Required
}

// IsRequired reports whether the caller must supply this parameter.
func (p ParameterSpec) IsRequired() bool {
	_, ok := p.Default.(requiredMarker)
	return ok
}

// Param declares an optional parameter with a default value.
func Param(name string, typ ParamType, def any, description string) ParameterSpec {
	return ParameterSpec{Name: name, Type: typ, Default: def, Description: description}
}

// RequiredParam declares a parameter the caller must supply.
func RequiredParam(name string, typ ParamType, description string) ParameterSpec {
	return ParameterSpec{Name: name, Type: typ, Default: Required, Description: description}
}

// EnumParam declares a string parameter restricted to values.
// Pass Required as def to make it mandatory.
func EnumParam(name string, values []string, def any, description string) ParameterSpec {
	enum := make([]string, len(values))
	copy(enum, values)
	return ParameterSpec{Name: name, Type: TypeEnum, Enum: enum, Default: def, Description: description}
}

// jsonSchemaType maps a ParamType onto a JSON Schema type keyword.
func (t ParamType) jsonSchemaType() string {
	if t == TypeEnum {
		return string(TypeString)
	}
	return string(t)
}
