package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// attrValue evaluates an attribute without variables or functions and
// converts it to want. Unknown values are rejected.
func attrValue(attr *hcl.Attribute, want cty.Type) (cty.Value, hcl.Diagnostics) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}

	if !val.IsWhollyKnown() {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown value",
			Detail:   fmt.Sprintf("The value of %q must be a literal.", attr.Name),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}

	converted, err := convert.Convert(val, want)
	if err != nil {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Incorrect attribute value type",
			Detail:   fmt.Sprintf("Inappropriate value for %q: %s.", attr.Name, err),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return converted, nil
}

func attrString(attr *hcl.Attribute) (string, hcl.Diagnostics) {
	val, diags := attrValue(attr, cty.String)
	if diags.HasErrors() || val.IsNull() {
		return "", diags
	}
	return val.AsString(), nil
}

func attrBool(attr *hcl.Attribute) (bool, hcl.Diagnostics) {
	val, diags := attrValue(attr, cty.Bool)
	if diags.HasErrors() || val.IsNull() {
		return false, diags
	}
	return val.True(), nil
}

// attrNumber returns nil for an explicit null
func attrNumber(attr *hcl.Attribute) (*float64, hcl.Diagnostics) {
	val, diags := attrValue(attr, cty.Number)
	if diags.HasErrors() || val.IsNull() {
		return nil, diags
	}
	f, _ := val.AsBigFloat().Float64()
	return &f, nil
}

// attrStrings accepts a list or tuple; numbers are converted to their
// decimal form so tokens = ["var-a", "*", 100] works.
func attrStrings(attr *hcl.Attribute) ([]string, hcl.Diagnostics) {
	val, diags := attrValue(attr, cty.List(cty.String))
	if diags.HasErrors() || val.IsNull() {
		return nil, diags
	}

	out := make([]string, 0, val.LengthInt())
	iter := val.ElementIterator()
	for iter.Next() {
		_, v := iter.Element()
		if v.IsNull() {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Null list element",
				Detail:   fmt.Sprintf("%q must not contain null elements.", attr.Name),
				Subject:  attr.Expr.Range().Ptr(),
			}}
		}
		out = append(out, v.AsString())
	}
	return out, nil
}
