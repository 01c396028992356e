package genofile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hhcho/crosshmm/geno"
)

var ErrFilterLength = errors.New("genofile: invalid length of filter array")

// GenoFileStream reads a binary genotype matrix row by row: one individual
// per row, one signed byte per marker. Negative bytes are missing calls.
// Row and column filters drop individuals and markers on the fly.
type GenoFileStream struct {
	filename  string
	file      *os.File
	reader    *bufio.Reader
	numRows   uint64
	numCols   uint64
	lineCount uint64
	buf       []byte

	filtRows []bool
	filtCols []bool

	filtNumRow uint64
	filtNumCol uint64
}

func NewGenoFileStream(filename string, numRow, numCol uint64) (*GenoFileStream, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if want := int64(numRow * numCol); info.Size() != want {
		file.Close()
		return nil, fmt.Errorf("genofile: %s has %d bytes, want %d x %d = %d", filename, info.Size(), numRow, numCol, want)
	}

	return &GenoFileStream{
		filename: filename,
		file:     file,
		buf:      make([]byte, numCol),
		numRows:  numRow,
		numCols:  numCol,
		reader:   bufio.NewReader(file),
	}, nil
}

func (gfs *GenoFileStream) readRow() ([]int, error) {
	if _, err := io.ReadFull(gfs.reader, gfs.buf); err != nil {
		return nil, fmt.Errorf("genofile: %s row %d: %w", gfs.filename, gfs.lineCount+1, err)
	}

	var row []int
	if gfs.filtCols != nil {
		row = make([]int, gfs.filtNumCol)
	} else {
		row = make([]int, len(gfs.buf))
	}

	idx := 0
	for i := range gfs.buf {
		if gfs.filtCols == nil || gfs.filtCols[i] {
			if g := int(int8(gfs.buf[i])); g > 0 {
				row[idx] = g
			} else {
				row[idx] = geno.Missing
			}
			idx++
		}
	}

	gfs.lineCount++
	return row, nil
}

// Reset rewinds the stream to the first row; filters are kept.
func (gfs *GenoFileStream) Reset() error {
	var err error
	if gfs.file == nil {
		gfs.file, err = os.Open(gfs.filename)
	} else {
		_, err = gfs.file.Seek(0, io.SeekStart)
	}
	if err != nil {
		return err
	}

	gfs.reader = bufio.NewReader(gfs.file)
	gfs.lineCount = 0
	return nil
}

func (gfs *GenoFileStream) NumRows() uint64 {
	return gfs.numRows
}

func (gfs *GenoFileStream) NumCols() uint64 {
	return gfs.numCols
}

func (gfs *GenoFileStream) NumRowsToKeep() uint64 {
	if gfs.filtRows == nil {
		return gfs.NumRows()
	}
	return gfs.filtNumRow
}

func (gfs *GenoFileStream) NumColsToKeep() uint64 {
	if gfs.filtCols == nil {
		return gfs.NumCols()
	}
	return gfs.filtNumCol
}

// CheckEOF reports whether every row has been read, closing the file if so.
func (gfs *GenoFileStream) CheckEOF() bool {
	if gfs.lineCount >= gfs.numRows {
		gfs.Close()
		return true
	}
	return false
}

// NextRow returns the next kept row, or nil at the end of the stream.
func (gfs *GenoFileStream) NextRow() ([]int, error) {
	if gfs.filtRows != nil {
		for gfs.lineCount < gfs.numRows && !gfs.filtRows[gfs.lineCount] {
			if _, err := gfs.readRow(); err != nil {
				return nil, err
			}
		}
	}
	if gfs.CheckEOF() {
		return nil, nil
	}
	return gfs.readRow()
}

// UpdateRowFilt narrows the row filter. a has one entry per currently kept
// row; it returns the number of rows kept afterwards.
func (gfs *GenoFileStream) UpdateRowFilt(a []bool) (int, error) {
	if len(a) != int(gfs.NumRowsToKeep()) {
		return 0, ErrFilterLength
	}

	if gfs.filtRows == nil {
		gfs.filtRows = make([]bool, gfs.numRows)
		for i := range gfs.filtRows {
			gfs.filtRows[i] = true
		}
	}

	sum := 0
	idx := 0
	for i := range gfs.filtRows {
		if gfs.filtRows[i] {
			gfs.filtRows[i] = gfs.filtRows[i] && a[idx]
			idx++
			if gfs.filtRows[i] {
				sum++
			}
		}
	}

	gfs.filtNumRow = uint64(sum)
	return sum, nil
}

// UpdateColFilt is UpdateRowFilt for markers.
func (gfs *GenoFileStream) UpdateColFilt(a []bool) (int, error) {
	if len(a) != int(gfs.NumColsToKeep()) {
		return 0, ErrFilterLength
	}

	if gfs.filtCols == nil {
		gfs.filtCols = make([]bool, gfs.numCols)
		for i := range gfs.filtCols {
			gfs.filtCols[i] = true
		}
	}

	sum := 0
	idx := 0
	for i := range gfs.filtCols {
		if gfs.filtCols[i] {
			gfs.filtCols[i] = gfs.filtCols[i] && a[idx]
			idx++
			if gfs.filtCols[i] {
				sum++
			}
		}
	}

	gfs.filtNumCol = uint64(sum)
	return sum, nil
}

func (gfs *GenoFileStream) ColFilt() []bool {
	return gfs.filtCols
}

func (gfs *GenoFileStream) RowFilt() []bool {
	return gfs.filtRows
}

func (gfs *GenoFileStream) LineCount() uint64 {
	return gfs.lineCount
}

func (gfs *GenoFileStream) Close() error {
	var err error
	if gfs.file != nil {
		err = gfs.file.Close()
	}
	gfs.file = nil
	gfs.reader = nil
	return err
}

// ReadAll rewinds the stream and returns every kept row.
func (gfs *GenoFileStream) ReadAll() ([][]int, error) {
	if err := gfs.Reset(); err != nil {
		return nil, err
	}
	out := make([][]int, 0, gfs.NumRowsToKeep())
	for {
		row, err := gfs.NextRow()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return out, nil
		}
		out = append(out, row)
	}
}
