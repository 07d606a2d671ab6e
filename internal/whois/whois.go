// Package whois renders PeeringDB rows the way a whois server would:
// networks get dedicated sections, anything else a generic key/value or
// tabular layout.
package whois

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/utils"
)

var displayNames = map[string]string{
	"fac_set": "Facilities",
}

// Format writes whois output to an io.Writer.
type Format struct {
	w io.Writer
}

// New returns a Format writing to w.
func New(w io.Writer) *Format {
	return &Format{w: w}
}

func (f *Format) println(s string) {
	fmt.Fprintln(f.w, s)
}

// mkFmt builds a left-aligned column layout, e.g. "%-6s %-20s".
func mkFmt(widths ...int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = fmt.Sprintf("%%-%ds", w)
	}
	return strings.Join(parts, " ")
}

func line(layout string, values ...string) string {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimRight(fmt.Sprintf(layout, args...), " ")
}

func displayName(key string) string {
	if name, ok := displayNames[key]; ok {
		return name
	}
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprint(v)
}

func (f *Format) section(name string) {
	f.println(name)
	f.println(strings.Repeat("=", len(name)))
	f.println("")
}

func (f *Format) headers(layout string, headers ...string) {
	f.println(line(layout, headers...))
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	f.println(line(layout, dashes...))
}

func (f *Format) field(row resource.Row, key, label string) {
	f.println(fmt.Sprintf("%-21s: %s", label, str(row[key])))
}

// Display writes data, labelled typ.
func (f *Format) Display(typ string, data any) {
	if typ == "net" {
		if row, ok := resource.AsRow(data); ok {
			f.net(row)
			return
		}
	}

	switch t := data.(type) {
	case nil:
		f.println(typ + ": ")
	case map[string]any, resource.Row:
		row, _ := resource.AsRow(t)
		if len(row) == 0 {
			f.println(typ + ": {}")
			return
		}
		f.println("")
		f.println(typ)
		for _, k := range sortedKeys(row) {
			f.Display(k, row[k])
		}
	case []any:
		if len(t) == 0 {
			f.println(typ + ": []")
			return
		}
		if first, ok := resource.AsRow(t[0]); ok {
			f.set(typ, t, sortedKeys(first))
			return
		}
		for _, each := range t {
			f.Display(typ, each)
		}
	default:
		f.println(fmt.Sprintf("%s: %s", typ, str(data)))
	}
}

func sortedKeys(row resource.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// set writes a list of rows as a table.
func (f *Format) set(typ string, data []any, columns []string) {
	f.section(fmt.Sprintf("%s (%d)", displayName(typ), len(data)))

	headers := make([]string, len(columns))
	widths := make([]int, len(columns))
	for i, col := range columns {
		headers[i] = displayName(col)
		widths[i] = len(headers[i])
		for _, each := range data {
			row, _ := resource.AsRow(each)
			if n := len(str(row[col])); n > widths[i] {
				widths[i] = n
			}
		}
	}
	layout := mkFmt(widths...)
	f.headers(layout, headers...)

	for _, each := range data {
		row, _ := resource.AsRow(each)
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = str(row[col])
		}
		f.println(line(layout, values...))
	}
	f.println("\n")
}

func (f *Format) net(row resource.Row) {
	f.section("Network Information")
	f.field(row, "name", "Name")
	f.field(row, "asn", "Primary ASN")
	f.field(row, "aka", "Also Known As")
	f.field(row, "website", "Website")
	f.field(row, "irr_as_set", "IRR AS-SET")
	f.field(row, "info_type", "Network Type")
	f.field(row, "info_prefixes6", "Approx IPv6 Prefixes")
	f.field(row, "info_prefixes4", "Approx IPv4 Prefixes")
	f.field(row, "looking_glass", "Looking Glass")
	f.field(row, "route_server", "Route Server")
	f.field(row, "created", "Created at")
	f.field(row, "updated", "Updated at")
	f.println("\n")

	f.section("Peering Policy Information")
	f.field(row, "policy_url", "URL")
	f.field(row, "policy_general", "General Policy")
	f.field(row, "policy_locations", "Location Requirement")
	f.field(row, "policy_ratio", "Ratio Requirement")
	f.field(row, "policy_contracts", "Contract Requirement")
	f.println("\n")

	if pocs := rows(row["poc_set"]); len(pocs) > 0 {
		f.contacts(pocs)
	}
	if ixs := rows(row["netixlan_set"]); len(ixs) > 0 {
		f.publicPeering(ixs)
	}
	if facs := rows(row["netfac_set"]); len(facs) > 0 {
		f.privatePeering(facs)
	}
}

func rows(v any) []resource.Row {
	items, _ := v.([]any)
	out := make([]resource.Row, 0, len(items))
	for _, item := range items {
		if row, ok := resource.AsRow(item); ok {
			out = append(out, row)
		}
	}
	return out
}

// or returns row[key], falling back to row[alt] when key is absent.
func or(row resource.Row, key, alt string) any {
	if v, ok := row[key]; ok && v != nil {
		return v
	}
	return row[alt]
}

func (f *Format) contacts(pocs []resource.Row) {
	f.section("Contact Information")
	layout := mkFmt(6, 20, 15, 20, 14)
	f.headers(layout, "Role", "Name", "Email", "URL", "Phone")
	for _, poc := range pocs {
		f.println(line(layout, str(poc["role"]), str(poc["name"]), str(poc["email"]), str(poc["url"]), str(poc["phone"])))
	}
	f.println("\n")
}

func (f *Format) publicPeering(ixs []resource.Row) {
	f.section(fmt.Sprintf("Public Peering Points (%d)", len(ixs)))
	layout := mkFmt(36, 8, 27, 5)
	f.headers(layout, "Exchange Point", "ASN", "IP Address", "Speed")
	for _, ix := range ixs {
		speed, _ := resource.AsID(ix["speed"])
		name := str(or(ix, "name", "ixlan_id"))
		v4, v6 := str(ix["ipaddr4"]), str(ix["ipaddr6"])
		if v4 != "" {
			f.println(line(layout, name, str(ix["asn"]), v4, utils.PrettySpeed(speed)))
		}
		if v6 != "" {
			if v4 != "" {
				f.println(line(layout, "", "", v6, ""))
			} else {
				f.println(line(layout, name, str(ix["asn"]), v6, utils.PrettySpeed(speed)))
			}
		}
	}
	f.println("\n")
}

func (f *Format) privatePeering(facs []resource.Row) {
	f.section(fmt.Sprintf("Private Peering Facilities (%d)", len(facs)))
	layout := mkFmt(51, 8, 15, 2)
	f.headers(layout, "Facility Name", "ASN", "City", "CO")
	for _, fac := range facs {
		f.println(line(layout, str(or(fac, "name", "id")), str(fac["local_asn"]), str(fac["city"]), str(fac["country"])))
	}
	f.println("\n")
}
