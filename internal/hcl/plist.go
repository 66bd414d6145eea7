package hcl

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	"howett.net/plist"
)

// infoPlistValues evaluates every attribute of the info_plist block and
// converts it to the Go value the property-list encoder expects.
func infoPlistValues(ctx context.Context, b *infoPlistBlock) (map[string]any, error) {
	if b == nil || b.Body == nil {
		return nil, nil
	}
	logger := ctxlog.FromContext(ctx)

	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	evalCtx := &hcl.EvalContext{}
	out := make(map[string]any, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("key %q: %w", name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", name, err)
		}
		if native == nil {
			logger.Debug("Skipping null property-list key.", "key", name)
			continue
		}
		out[name] = native
	}
	return out, nil
}

// ctyToNative recursively converts a cty.Value to the Go value a property
// list can carry. Whole numbers become int64 so they encode as <integer>.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			var i int64
			if err := gocty.FromCtyValue(v, &i); err == nil {
				return i, nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			if native != nil {
				slice = append(slice, native)
			}
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			if native != nil {
				m[key.AsString()] = native
			}
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

// renderInfoPlist merges extra over the standard bundle keys and encodes the
// result as an XML property list.
func renderInfoPlist(a *appBlock, extra map[string]any) ([]byte, error) {
	identifier := a.Identifier
	if identifier == "" {
		identifier = "com.yourcompany." + a.Name
	}
	version := a.Version
	if version == "" {
		version = DefaultVersion
	}
	typ, sig := typeCodes(a)

	info := map[string]any{
		"CFBundleName":                  a.Name,
		"CFBundleDisplayName":           a.Name,
		"CFBundleExecutable":            a.Name,
		"CFBundleIdentifier":            identifier,
		"CFBundleVersion":               version,
		"CFBundlePackageType":           typ,
		"CFBundleSignature":             sig,
		"CFBundleInfoDictionaryVersion": "6.0",
		"CFBundleDevelopmentRegion":     "en",
		"LSRequiresIPhoneOS":            true,
	}
	if a.DeploymentTarget != "" {
		info["MinimumOSVersion"] = a.DeploymentTarget
	}
	for k, v := range extra {
		info[k] = v
	}

	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encoding Info.plist: %w", err)
	}
	return data, nil
}
