package domain

import (
	"encoding/json"
	"math"
)

// Data type tags attached to long records.
const (
	DataTypeActual   = "Actual"
	DataTypeBudget   = "Budget"
	DataTypeForecast = "Forecast"
)

// Missing is the marker for values that could not be parsed as numbers.
// Summation treats it as zero; DropNA removes records carrying it.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// LongRecord is one output row: the identifier values, the original value
// column name (Variable) and the normalized numeric Value, plus derived
// metadata. FiscalYear and Period are zero when unknown.
type LongRecord struct {
	IDValues    []Cell  `json:"id_values"`
	Variable    string  `json:"variable"`
	Value       float64 `json:"value"`
	DataType    string  `json:"data_type,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	FiscalYear  int     `json:"fiscal_year,omitempty"`
	Period      int     `json:"period,omitempty"`
}

// longRecordJSON mirrors LongRecord with a nullable value, because NaN
// has no JSON representation.
type longRecordJSON struct {
	IDValues    []Cell   `json:"id_values"`
	Variable    string   `json:"variable"`
	Value       *float64 `json:"value"`
	DataType    string   `json:"data_type,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	FiscalYear  int      `json:"fiscal_year,omitempty"`
	Period      int      `json:"period,omitempty"`
}

// MarshalJSON renders the missing marker as null.
func (r LongRecord) MarshalJSON() ([]byte, error) {
	out := longRecordJSON{
		IDValues:    r.IDValues,
		Variable:    r.Variable,
		DataType:    r.DataType,
		ReleaseDate: r.ReleaseDate,
		FiscalYear:  r.FiscalYear,
		Period:      r.Period,
	}
	if !IsMissing(r.Value) {
		out.Value = &r.Value
	}
	return json.Marshal(out)
}

// UnmarshalJSON maps a null value back to the missing marker.
func (r *LongRecord) UnmarshalJSON(data []byte) error {
	var in longRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.IDValues = in.IDValues
	r.Variable = in.Variable
	r.DataType = in.DataType
	r.ReleaseDate = in.ReleaseDate
	r.FiscalYear = in.FiscalYear
	r.Period = in.Period
	if in.Value == nil {
		r.Value = Missing
	} else {
		r.Value = *in.Value
	}
	return nil
}

// LongTable is the combined long-format output. IDColumns names the
// identifier fields, in the order their values appear in every record.
type LongTable struct {
	IDColumns    []string     `json:"id_columns"`
	VariableName string       `json:"variable_name"`
	ValueName    string       `json:"value_name"`
	Records      []LongRecord `json:"records"`
}

// SheetStats reports what happened to a single sheet during reshaping.
// These counts are returned alongside the data so callers can surface
// them; the core itself never prints.
type SheetStats struct {
	SourceFile    string `json:"source_file"`
	Sheet         string `json:"sheet"`
	SourceRows    int    `json:"source_rows"`
	FilteredRows  int    `json:"filtered_rows"`
	OutputRecords int    `json:"output_records"`
	MissingValues int    `json:"missing_values"`
	DroppedNA     int    `json:"dropped_na"`
}
