// Package hcl loads formula definitions from HCL files.
package hcl

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/zap"

	"freight-pricing/core/formula"
	"freight-pricing/core/pricing"
	"freight-pricing/core/quote"
	"freight-pricing/internal/errors"
	"freight-pricing/internal/logging"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "formula", LabelNames: []string{"id"}},
	},
}

var formulaSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name"},
		{Name: "tokens", Required: true},
		{Name: "minimum_distance"},
		{Name: "currency"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "tier", LabelNames: []string{"name"}},
	},
}

var tierSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "id"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
	},
}

var variableSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "id", Required: true},
		{Name: "value"},
		{Name: "external"},
	},
}

// Loader reads formula definition files
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader; a nil logger uses the global one
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = logging.Named("hcl")
	}
	return &Loader{
		logger: logger,
	}
}

// LoadDir loads every *.hcl file in dir, in file name order
func (l *Loader) LoadDir(dir string) ([]*quote.Definition, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Config("definitions directory not readable", err).WithContext("dir", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, errors.Parsing("invalid definitions directory", err).WithContext("dir", dir)
	}
	sort.Strings(files)

	var defs []*quote.Definition
	for _, file := range files {
		loaded, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}

	l.logger.Info("loaded formula definitions",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("formulas", len(defs)),
	)
	return defs, nil
}

// LoadFile loads the definitions in one file
func (l *Loader) LoadFile(path string) ([]*quote.Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Parsing("failed to read definition file", err).WithContext("file", path)
	}
	return l.Parse(src, path)
}

// Parse decodes definitions from src. filename is used for diagnostics and
// recorded as each definition's Source. hclparse.Parser caches files by
// name, so every call gets its own parser and reloads see the new content.
func (l *Loader) Parse(src []byte, filename string) ([]*quote.Definition, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	defs := make([]*quote.Definition, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		def, diags := decodeFormula(block)
		if diags.HasErrors() {
			return nil, diagError(filename, diags)
		}
		def.Source = filename
		defs = append(defs, def)

		l.logger.Debug("decoded formula",
			zap.String("formula", def.ID),
			zap.Int("tiers", len(def.Tiers)),
			zap.String("file", filename),
		)
	}
	return defs, nil
}

// LoadInto loads dir and registers every definition in reg
func (l *Loader) LoadInto(reg *quote.Registry, dir string) error {
	defs, err := l.LoadDir(dir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func decodeFormula(block *hcl.Block) (*quote.Definition, hcl.Diagnostics) {
	def := &quote.Definition{ID: block.Labels[0]}

	content, diags := block.Body.Content(formulaSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	if attr, ok := content.Attributes["name"]; ok {
		def.Name, diags = attrString(attr)
		if diags.HasErrors() {
			return nil, diags
		}
	}

	if attr, ok := content.Attributes["currency"]; ok {
		def.Currency, diags = attrString(attr)
		if diags.HasErrors() {
			return nil, diags
		}
	}

	if attr, ok := content.Attributes["minimum_distance"]; ok {
		minimum, diags := attrNumber(attr)
		if diags.HasErrors() {
			return nil, diags
		}
		if minimum != nil {
			if *minimum < 0 {
				return nil, hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Invalid minimum distance",
					Detail:   "minimum_distance must not be negative.",
					Subject:  attr.Expr.Range().Ptr(),
				}}
			}
			def.MinimumDistance = *minimum
		}
	}

	raw, diags := attrStrings(content.Attributes["tokens"])
	if diags.HasErrors() {
		return nil, diags
	}
	def.Tokens = formula.Tokens(raw...)

	for _, tb := range content.Blocks {
		tier, diags := decodeTier(tb)
		if diags.HasErrors() {
			return nil, diags
		}
		def.Tiers = append(def.Tiers, tier)
	}
	return def, nil
}

func decodeTier(block *hcl.Block) (pricing.PricingTier, hcl.Diagnostics) {
	tier := pricing.PricingTier{
		Name:      block.Labels[0],
		Variables: make(map[string]pricing.Variable),
	}

	content, diags := block.Body.Content(tierSchema)
	if diags.HasErrors() {
		return tier, diags
	}

	if attr, ok := content.Attributes["id"]; ok {
		tier.ID, diags = attrString(attr)
		if diags.HasErrors() {
			return tier, diags
		}
	}

	for _, vb := range content.Blocks {
		name := vb.Labels[0]
		if _, dup := tier.Variables[name]; dup {
			return tier, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Duplicate variable",
				Detail:   "Variable \"" + name + "\" is declared twice in tier \"" + tier.Name + "\".",
				Subject:  vb.DefRange.Ptr(),
			}}
		}

		v, diags := decodeVariable(vb)
		if diags.HasErrors() {
			return tier, diags
		}
		tier.Variables[name] = v
	}
	return tier, nil
}

func decodeVariable(block *hcl.Block) (pricing.Variable, hcl.Diagnostics) {
	var v pricing.Variable

	content, diags := block.Body.Content(variableSchema)
	if diags.HasErrors() {
		return v, diags
	}

	v.ID, diags = attrString(content.Attributes["id"])
	if diags.HasErrors() {
		return v, diags
	}

	if attr, ok := content.Attributes["external"]; ok {
		v.IsExternallySupplied, diags = attrBool(attr)
		if diags.HasErrors() {
			return v, diags
		}
	}

	if attr, ok := content.Attributes["value"]; ok {
		v.Value, diags = attrNumber(attr)
		if diags.HasErrors() {
			return v, diags
		}
	}
	return v, nil
}

// diagError converts the first error diagnostic into a parsing error
func diagError(filename string, diags hcl.Diagnostics) error {
	err := errors.Parsing("invalid formula definition", diags).WithContext("file", filename)
	for _, d := range diags {
		if d.Severity == hcl.DiagError && d.Subject != nil {
			err = err.WithContext("line", d.Subject.Start.Line)
			break
		}
	}
	return err
}
