package main

import (
	"encoding/json"
	"os"
)

type TestResult struct {

	// Test Configs
	Metadata            string `json:"Metadata"`
	ResultFormatVersion string `json:"ResultFormatVersion"`
	Workers             uint   `json:"Workers"`
	Benchmark           string `json:"Benchmark"`

	// Suggest service specific configs
	ServiceConfigs map[string]interface{} `json:"ServiceConfigs"`

	StartTime      int64 `json:"StartTime"`
	EndTime        int64 `json:"EndTime"`
	DurationMillis int64 `json:"DurationMillis"`

	// Totals
	Totals map[string]interface{} `json:"Totals"`

	// Overall Rates
	OverallRates map[string]interface{} `json:"OverallRates"`

	// Overall Quantiles
	OverallQuantiles map[string]interface{} `json:"OverallQuantiles"`
}

// writeResult saves a result as indented JSON
func writeResult(fileName string, r TestResult) error {
	data, err := json.MarshalIndent(r, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, data, 0644)
}
