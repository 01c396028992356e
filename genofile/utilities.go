// Package genofile reads and writes the files of a cross dataset: the binary
// genotype matrix, the founder panel, the cross orders, the sexes and the
// marker map.
package genofile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.dedis.ch/onet/v3/log"
)

// SaveGenoToFile writes geno in the layout GenoFileStream reads, with
// missing calls stored as -1.
func SaveGenoToFile(filename string, g [][]int) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i, row := range g {
		for j, v := range row {
			if v < 0 || v > 127 {
				return fmt.Errorf("genofile: individual %d marker %d: code %d does not fit a byte", i+1, j+1, v)
			}
			b := byte(v)
			if v == 0 {
				b = 0xff
			}
			if err := writer.WriteByte(b); err != nil {
				return err
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	log.Lvl2("Saved data to", filename)
	return nil
}

// LoadIntMatrixFromFile reads a delimited integer matrix. "NA" and empty
// fields become na.
func LoadIntMatrixFromFile(filename string, delim rune, na int) ([][]int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := csv.NewReader(f)
	c.Comma = delim
	text, err := c.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("genofile: %s: %w", filename, err)
	}

	data := make([][]int, len(text))
	for i := range text {
		data[i] = make([]int, len(text[i]))
		for j, field := range text[i] {
			field = strings.TrimSpace(field)
			if field == "" || field == "NA" {
				data[i][j] = na
				continue
			}
			if data[i][j], err = strconv.Atoi(field); err != nil {
				return nil, fmt.Errorf("genofile: %s line %d: %w", filename, i+1, err)
			}
		}
	}
	return data, nil
}

func SaveIntMatrixToFile(filename string, m [][]int, delim rune) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delim
	for _, row := range m {
		line := make([]string, len(row))
		for j, v := range row {
			line[j] = strconv.Itoa(v)
		}
		if err := w.Write(line); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	log.Lvl2("Saved data to", filename)
	return nil
}

// LoadMarkerPositionFile reads "name<delim>position in cM" lines.
func LoadMarkerPositionFile(filename string, delim rune) ([]string, []float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	c := csv.NewReader(f)
	c.Comma = delim
	c.FieldsPerRecord = 2
	text, err := c.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("genofile: %s: %w", filename, err)
	}

	names := make([]string, len(text))
	pos := make([]float64, len(text))
	for i := range text {
		names[i] = strings.TrimSpace(text[i][0])
		if pos[i], err = strconv.ParseFloat(strings.TrimSpace(text[i][1]), 64); err != nil {
			return nil, nil, fmt.Errorf("genofile: %s line %d: %w", filename, i+1, err)
		}
	}
	return names, pos, nil
}

func SaveMarkerPositionFile(filename string, names []string, pos []float64, delim rune) error {
	if len(names) != len(pos) {
		return fmt.Errorf("genofile: %d marker names for %d positions", len(names), len(pos))
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := range pos {
		writer.WriteString(fmt.Sprintf("%s%c%.6f\n", names[i], delim, pos[i]))
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	log.Lvl2("Saved data to", filename)
	return nil
}

// MarkerNames returns M1..Mn.
func MarkerNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "M" + strconv.Itoa(i+1)
	}
	return out
}
