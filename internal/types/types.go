package types

import (
	"fmt"
	"strings"
)

// DataType represents a column data type.
type DataType uint8

const (
	TypeBool DataType = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeString
)

// TypeInfo holds metadata about a data type.
type TypeInfo struct {
	Type      DataType
	Name      string
	FixedSize int // bytes per value; 0 for variable-length (String)
}

var typeInfoList = []TypeInfo{
	{TypeBool, "Bool", 1},
	{TypeInt32, "Int32", 4},
	{TypeInt64, "Int64", 8},
	{TypeFloat64, "Float64", 8},
	{TypeString, "String", 0},
}

// TypeInfoMap maps DataType to its TypeInfo.
var TypeInfoMap map[DataType]TypeInfo

// typeNameMap maps lowercase type name to DataType for parsing.
var typeNameMap map[string]DataType

func init() {
	TypeInfoMap = make(map[DataType]TypeInfo, len(typeInfoList))
	typeNameMap = make(map[string]DataType, len(typeInfoList))
	for _, ti := range typeInfoList {
		TypeInfoMap[ti.Type] = ti
		typeNameMap[strings.ToLower(ti.Name)] = ti.Type
	}
	// Common aliases accepted in DDL.
	typeNameMap["int"] = TypeInt32
	typeNameMap["integer"] = TypeInt32
	typeNameMap["bigint"] = TypeInt64
	typeNameMap["double"] = TypeFloat64
	typeNameMap["text"] = TypeString
	typeNameMap["boolean"] = TypeBool
}

// ParseDataType converts a type name string (case-insensitive) to DataType.
func ParseDataType(name string) (DataType, error) {
	dt, ok := typeNameMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown data type: %s", name)
	}
	return dt, nil
}

// Name returns the string name of the DataType.
func (dt DataType) Name() string {
	if ti, ok := TypeInfoMap[dt]; ok {
		return ti.Name
	}
	return "Unknown"
}

// FixedSize returns the byte size for fixed-size types, 0 for variable-length.
func (dt DataType) FixedSize() int {
	if ti, ok := TypeInfoMap[dt]; ok {
		return ti.FixedSize
	}
	return 0
}

// IsNumeric returns true for integer and float types.
func (dt DataType) IsNumeric() bool {
	switch dt {
	case TypeInt32, TypeInt64, TypeFloat64:
		return true
	}
	return false
}
