package compose

// VarRef is an argument value bound at execution time through a declared
// query variable.
type VarRef struct {
	Name string
	// Type is the GraphQL type of the variable, e.g. "String!".
	Type       string
	HasDefault bool
	DefaultVal any
}

// Var references the caller variable name of the given GraphQL type.
func Var(name, typ string) *VarRef {
	return &VarRef{Name: name, Type: typ}
}

// Default returns a copy of v with a default value.
func (v *VarRef) Default(value any) *VarRef {
	cp := *v
	cp.HasDefault = true
	cp.DefaultVal = value
	return &cp
}

// EnumValue is emitted unquoted.
type EnumValue string

// A builds an argument.
func A(name string, value any) Arg { return Arg{Name: name, Value: value} }
