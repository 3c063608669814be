package config

import "strings"

// EnvLookup resolves an environment variable name to its value. Returning ok
// == false means the variable is undefined.
type EnvLookup func(name string) (string, bool)

// interpolateString expands ${VAR} and ${VAR:-default} occurrences in s.
// Only string leaves are ever passed through here; defaults are taken
// literally and never themselves re-interpolated.
func interpolateString(s string, env EnvLookup, path string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])

		end := strings.Index(s[start:], "}")
		if end == -1 {
			// No closing brace: treat the rest literally.
			b.WriteString(s[start:])
			break
		}
		end += start

		expr := s[start+2 : end]
		name := expr
		def := ""
		hasDef := false
		if idx := strings.Index(expr, ":-"); idx != -1 {
			name = expr[:idx]
			def = expr[idx+2:]
			hasDef = true
		}

		val, ok := env(name)
		if !ok {
			if hasDef {
				val = def
			} else {
				return "", &UndefinedVariableError{Name: name, Path: path}
			}
		}
		b.WriteString(val)
		i = end + 1
	}
	return b.String(), nil
}

func interpolateSlice(vals []string, env EnvLookup, path string) ([]string, error) {
	if vals == nil {
		return nil, nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		var err error
		out[i], err = interpolateString(v, env, path)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// interpolateAgent walks the string leaves of a resolved Agent and expands them.
func interpolateAgent(a *Agent, env EnvLookup) error {
	var err error
	if a.Model, err = interpolateString(a.Model, env, a.QualifiedName+".model"); err != nil {
		return err
	}
	if a.PermissionMode, err = interpolateString(a.PermissionMode, env, a.QualifiedName+".permission_mode"); err != nil {
		return err
	}
	if a.Workspace, err = interpolateString(a.Workspace, env, a.QualifiedName+".workspace"); err != nil {
		return err
	}
	if a.AllowedTools, err = interpolateSlice(a.AllowedTools, env, a.QualifiedName+".allowed_tools"); err != nil {
		return err
	}
	if a.DeniedTools, err = interpolateSlice(a.DeniedTools, env, a.QualifiedName+".denied_tools"); err != nil {
		return err
	}
	for i := range a.Schedules {
		if a.Schedules[i].Prompt, err = interpolateString(a.Schedules[i].Prompt, env, a.QualifiedName+".schedules."+a.Schedules[i].Name+".prompt"); err != nil {
			return err
		}
	}
	return nil
}
