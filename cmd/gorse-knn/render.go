// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const missing = "-"

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 4, 64)
}

// renderMatrix writes a labeled matrix. Cells for which at returns false are rendered as "-".
func renderMatrix(w io.Writer, rowNames, colNames []string, at func(i, j int) (float64, bool)) error {
	table := tablewriter.NewWriter(w)
	table.Header(append([]string{""}, colNames...))
	for i, rowName := range rowNames {
		row := lo.Map(colNames, func(_ string, j int) string {
			if value, ok := at(i, j); ok {
				return formatFloat(value)
			}
			return missing
		})
		if err := table.Append(append([]string{rowName}, row...)); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
