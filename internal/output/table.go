package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

const timeLayout = "2006-01-02 15:04:05"

// TableFormatter formats output as a table
type TableFormatter struct {
	// Fields are json field paths such as "refDes" or "run.status"; empty means all
	// top-level fields of the first item.
	Fields []string
	// FieldLabels overrides the upper-cased last path segment as the column title.
	FieldLabels map[string]string
}

// Write outputs a slice (or a single item) as a table
func (f *TableFormatter) Write(w io.Writer, data interface{}) error {
	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}
	if val.Kind() != reflect.Slice {
		val = reflect.ValueOf([]interface{}{data})
	}
	if val.Len() == 0 {
		fmt.Fprintln(w, "No items found")
		return nil
	}

	headers := f.headers(indirect(val.Index(0)))
	if len(headers) == 0 {
		fmt.Fprintln(w, "No items found")
		return nil
	}

	labels := make([]string, len(headers))
	for i, h := range headers {
		if label, ok := f.FieldLabels[h]; ok {
			labels[i] = label
			continue
		}
		parts := strings.Split(h, ".")
		labels[i] = strings.ToUpper(parts[len(parts)-1])
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(labels)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for i := 0; i < val.Len(); i++ {
		item := indirect(val.Index(i))
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j] = formatValue(fieldValue(item, h))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

func (f *TableFormatter) headers(val reflect.Value) []string {
	if len(f.Fields) > 0 {
		return f.Fields
	}
	switch val.Kind() {
	case reflect.Struct:
		t := val.Type()
		headers := make([]string, 0, val.NumField())
		for i := 0; i < val.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if tag := jsonName(field); tag != "" && tag != "-" {
				headers = append(headers, tag)
			}
		}
		return headers
	case reflect.Map:
		headers := make([]string, 0, val.Len())
		for _, k := range val.MapKeys() {
			headers = append(headers, fmt.Sprint(k.Interface()))
		}
		return headers
	}
	return []string{"value"}
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.UTC().Format(timeLayout)
	case []string:
		return strings.Join(t, ",")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return fmt.Sprintf("%v", rv.Elem().Interface())
	}
	return fmt.Sprintf("%v", v)
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// fieldValue resolves a dotted json path ("run.status") on a struct or map.
func fieldValue(v reflect.Value, path string) interface{} {
	for _, part := range strings.Split(path, ".") {
		v = indirect(v)
		if !v.IsValid() {
			return nil
		}
		switch v.Kind() {
		case reflect.Struct:
			next := reflect.Value{}
			t := v.Type()
			for i := 0; i < t.NumField(); i++ {
				if f := t.Field(i); f.IsExported() && (jsonName(f) == part || f.Name == part) {
					next = v.Field(i)
					break
				}
			}
			if !next.IsValid() {
				return nil
			}
			v = next
		case reflect.Map:
			next := v.MapIndex(reflect.ValueOf(part))
			if !next.IsValid() {
				return nil
			}
			v = next
		default:
			return nil
		}
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// WriteError writes an error message
func WriteError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}
