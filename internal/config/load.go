package config

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// FS is the injected filesystem reader Load uses, so tests can exercise both
// fleet- and agent-shaped files from an in-memory tree.
type FS interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem reads from the real filesystem.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

type node struct {
	path      string
	dir       string
	raw       rawFile
	name      string   // resolved fleet name, empty for root
	fleetPath []string // ancestor chain including this node's own name
	defaults  rawAgentFields
}

// Load reads, validates, and resolves the fleet tree rooted at rootPath.
func Load(rootPath string, env EnvLookup, fsys FS) (*ResolvedConfig, error) {
	root, err := parseFile(rootPath, fsys)
	if err != nil {
		return nil, err
	}

	rootNode := &node{
		path:      rootPath,
		dir:       filepath.Dir(rootPath),
		raw:       *root,
		fleetPath: nil,
	}
	if root.Defaults != nil {
		rootNode.defaults = root.Defaults.rawAgentFields
	}

	cfg := &ResolvedConfig{}
	if root.Fleet != nil {
		cfg.FleetMeta.Name = root.Fleet.Name
		cfg.FleetMeta.Web = root.Fleet.Web
	}

	visiting := map[string]bool{rootPath: true}
	seenFleetNames := map[string][]string{} // siblings key -> names seen, for collision detection

	var agents []Agent
	if err := resolveFleet(rootNode, fsys, env, visiting, seenFleetNames, &agents, true); err != nil {
		return nil, err
	}

	qualified := map[string]bool{}
	for i := range agents {
		if qualified[agents[i].QualifiedName] {
			return nil, &DuplicateQualifiedAgentError{QualifiedName: agents[i].QualifiedName}
		}
		qualified[agents[i].QualifiedName] = true
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].QualifiedName < agents[j].QualifiedName })
	cfg.Agents = agents
	return cfg, nil
}

func parseFile(path string, fsys FS) (*rawFile, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &YamlSyntaxError{File: path, Cause: err}
	}
	return &raw, nil
}

// resolveFleet recursively walks one fleet node: its agent refs are resolved
// directly, its sub-fleet refs recurse. isRoot controls whether the web:
// block is honored (root fleet only) and whether fleetPath is empty.
func resolveFleet(n *node, fsys FS, env EnvLookup, visiting map[string]bool, seenNames map[string][]string, agents *[]Agent, isRoot bool) error {
	siblingKey := filepath.Dir(n.path)

	for _, fref := range n.raw.Fleets {
		childPath := filepath.Join(n.dir, fref.Path)
		if visiting[childPath] {
			chain := append(append([]string{}, n.fleetPath...), fref.Path)
			return &FleetCycleError{Chain: chain}
		}

		childRaw, err := parseFile(childPath, fsys)
		if err != nil {
			return err
		}

		childName, err := resolveFleetName(fref, childRaw, childPath)
		if err != nil {
			return err
		}
		if !ValidName(childName) {
			return &SchemaValidationError{File: childPath, Issues: []SchemaIssue{{Path: "fleet.name", Msg: "invalid name " + childName}}}
		}

		for _, existing := range seenNames[siblingKey] {
			if existing == childName {
				return &FleetNameCollisionError{Name: childName, Paths: []string{siblingKey}}
			}
		}
		seenNames[siblingKey] = append(seenNames[siblingKey], childName)

		childDefaults := n.defaults
		if childRaw.Defaults != nil {
			childDefaults.merge(&childRaw.Defaults.rawAgentFields)
		}
		if fref.Overrides != nil && fref.Overrides.Defaults != nil {
			childDefaults.merge(&fref.Overrides.Defaults.rawAgentFields)
		}

		childFleetPath := append(append([]string{}, n.fleetPath...), childName)
		child := &node{
			path:      childPath,
			dir:       filepath.Dir(childPath),
			raw:       *childRaw,
			name:      childName,
			fleetPath: childFleetPath,
			defaults:  childDefaults,
		}

		// Non-root fleets never honor a web: block (silently dropped).
		if childRaw.Fleet != nil {
			childRaw.Fleet.Web = nil
		}

		visiting[childPath] = true
		if err := resolveFleet(child, fsys, env, visiting, seenNames, agents, false); err != nil {
			return err
		}
		delete(visiting, childPath)
	}

	for _, aref := range n.raw.Agents {
		agentPath := filepath.Join(n.dir, aref.Path)
		agentRaw, err := parseFile(agentPath, fsys)
		if err != nil {
			return err
		}

		localName, err := resolveAgentName(aref, agentPath)
		if err != nil {
			return err
		}
		if !ValidName(localName) {
			return &SchemaValidationError{File: agentPath, Issues: []SchemaIssue{{Path: "agent.name", Msg: "invalid name " + localName}}}
		}

		fields := presetFieldsFor(derefOr(agentRaw.Runtime, "claude"))
		fields.merge(&n.defaults)
		fields.merge(&agentRaw.rawAgentFields)
		if aref.Overrides != nil {
			fields.merge(aref.Overrides)
		}

		a := fields.toAgent()
		a.LocalName = localName
		a.FleetPath = append([]string{}, n.fleetPath...)
		a.QualifiedName = qualifiedName(a.FleetPath, localName)

		if err := interpolateAgent(&a, env); err != nil {
			return err
		}

		*agents = append(*agents, a)
	}

	return nil
}

func derefOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func qualifiedName(fleetPath []string, localName string) string {
	parts := append(append([]string{}, fleetPath...), localName)
	out := parts[0]
	for _, p := range parts[1:] {
		out += "." + p
	}
	return out
}

// resolveFleetName applies the three-level name-resolution priority: parent
// override, the sub-fleet file's own fleet.name, then the directory basename.
func resolveFleetName(ref rawFleetRef, childRaw *rawFile, childPath string) (string, error) {
	if ref.Name != "" {
		return ref.Name, nil
	}
	if childRaw.Fleet != nil && childRaw.Fleet.Name != "" {
		return childRaw.Fleet.Name, nil
	}
	return filepath.Base(filepath.Dir(childPath)), nil
}

// resolveAgentName applies the equivalent priority for agent local names:
// parent reference override, else the agent file's own basename with its
// extension removed (worker.yaml -> worker).
func resolveAgentName(ref rawAgentRef, agentPath string) (string, error) {
	if ref.Name != "" {
		return ref.Name, nil
	}
	base := filepath.Base(agentPath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)], nil
}
