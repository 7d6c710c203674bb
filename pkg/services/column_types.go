package services

import (
	"strings"
)

// typeClass groups declared column types whose values can be compared.
type typeClass int

const (
	typeClassExcluded typeClass = iota
	typeClassNumeric
	typeClassString
)

func (c typeClass) String() string {
	switch c {
	case typeClassNumeric:
		return "numeric"
	case typeClassString:
		return "string"
	default:
		return "excluded"
	}
}

// normalizeColumnType lowercases a declared type and strips length/precision
// info and modifiers, so "VARCHAR(255)" and "int unsigned" compare by base type.
func normalizeColumnType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if idx := strings.Index(t, "("); idx > 0 {
		t = t[:idx]
	}
	for _, modifier := range []string{" unsigned", " signed", " zerofill"} {
		t = strings.ReplaceAll(t, modifier, "")
	}
	return strings.TrimSpace(t)
}

var numericTypes = map[string]bool{
	"int": true, "integer": true, "tinyint": true, "smallint": true, "mediumint": true, "bigint": true,
	"serial": true, "bigserial": true, "smallserial": true,
	"decimal": true, "numeric": true, "float": true, "double": true, "double precision": true,
	"real": true, "number": true, "int2": true, "int4": true, "int8": true, "float4": true, "float8": true,
}

var stringTypes = map[string]bool{
	"char": true, "varchar": true, "character": true, "character varying": true,
	"text": true, "tinytext": true, "mediumtext": true, "longtext": true,
	"nchar": true, "nvarchar": true, "string": true, "enum": true, "set": true,
	"uuid": true, "uniqueidentifier": true, "citext": true,
}

// excludedTypes never carry identifier values worth comparing.
var excludedTypes = map[string]bool{
	// Temporal types - dates/times don't represent relationships
	"timestamp": true, "timestamptz": true, "date": true, "datetime": true,
	"time": true, "timetz": true, "interval": true, "year": true,
	// Boolean - too few values, causes false positives
	"boolean": true, "bool": true, "bit": true,
	// Binary/LOB types - not comparable
	"bytea": true, "blob": true, "tinyblob": true, "mediumblob": true, "longblob": true,
	"binary": true, "varbinary": true,
	// Structured data types - not comparable
	"json": true, "jsonb": true, "xml": true,
	// Geometry types
	"point": true, "line": true, "polygon": true, "geometry": true,
}

// classifyColumnType maps a declared type to its comparison class.
// MySQL's tinyint(1) is a boolean in practice and is excluded.
func classifyColumnType(declared string) typeClass {
	lower := strings.ToLower(strings.ReplaceAll(declared, " ", ""))
	if strings.HasPrefix(lower, "tinyint(1)") {
		return typeClassExcluded
	}

	base := normalizeColumnType(declared)
	switch {
	case excludedTypes[base]:
		return typeClassExcluded
	case numericTypes[base]:
		return typeClassNumeric
	case stringTypes[base]:
		return typeClassString
	}

	// Unknown vendor types: fall back on the name.
	switch {
	case strings.Contains(base, "int"):
		return typeClassNumeric
	case strings.Contains(base, "char"), strings.Contains(base, "text"):
		return typeClassString
	}
	return typeClassExcluded
}

// typesCompatible reports whether two declared types can hold the same values.
func typesCompatible(a, b string) bool {
	ca := classifyColumnType(a)
	return ca != typeClassExcluded && ca == classifyColumnType(b)
}
