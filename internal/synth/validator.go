package synth

import (
	"fmt"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Validate parses candidate source without executing anything and confirms
// that evaluation would bind a callable named name at the top level. Accepted
// shapes: a function declaration (plain or async), or a var/let/const binding
// initialized with a function or arrow literal.
func Validate(code, name string) error {
	prog, err := parser.ParseFile(nil, name+".js", code, 0)
	if err != nil {
		return &SyntaxError{Message: err.Error()}
	}
	for _, stmt := range prog.Body {
		if declaresCallable(stmt, name) {
			return nil
		}
	}
	return &SyntaxError{Message: fmt.Sprintf("code parses but does not define a function named %q", name)}
}

func declaresCallable(stmt ast.Statement, name string) bool {
	switch st := stmt.(type) {
	case *ast.FunctionDeclaration:
		return st.Function != nil && st.Function.Name != nil && string(st.Function.Name.Name) == name
	case *ast.VariableStatement:
		return anyCallableBinding(st.List, name)
	case *ast.LexicalDeclaration:
		return anyCallableBinding(st.List, name)
	}
	return false
}

func anyCallableBinding(bindings []*ast.Binding, name string) bool {
	for _, b := range bindings {
		ident, ok := b.Target.(*ast.Identifier)
		if !ok || string(ident.Name) != name {
			continue
		}
		switch b.Initializer.(type) {
		case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
			return true
		}
	}
	return false
}
