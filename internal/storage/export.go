package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

type ExportData struct {
	RunInfo
	Steps    int                `json:"steps"`
	Faults   int                `json:"faults"`
	Times    []float64          `json:"times"`
	States   [][]float64        `json:"states"`
	Controls [][]float64        `json:"controls"`
	Metrics  map[string]float64 `json:"metrics"`
}

func newExportData(info RunInfo, result *dynamo.Result) ExportData {
	data := ExportData{
		RunInfo:  info,
		Steps:    result.StepsTaken,
		Faults:   result.Faults,
		Times:    result.Times,
		States:   make([][]float64, len(result.States)),
		Controls: make([][]float64, len(result.Controls)),
		Metrics:  result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	return data
}

func EncodeJSON(w io.Writer, info RunInfo, result *dynamo.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(info, result))
}

func ExportJSON(path string, info RunInfo, result *dynamo.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return EncodeJSON(file, info, result)
}

func ExportCSV(path string, result *dynamo.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, result)
}
