package instrument

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"kis-trading-bot/internal/types"

	"golang.org/x/text/encoding/korean"
)

// Market describes one KIS master file. Each line is fixed width: a head
// with the short code, standard code and CP949 name, followed by a
// market-specific tail of attribute columns.
type Market struct {
	Name    string
	File    string
	TailLen int
}

var (
	KOSPI  = Market{Name: "KOSPI", File: "kospi_code.mst.zip", TailLen: 228}
	KOSDAQ = Market{Name: "KOSDAQ", File: "kosdaq_code.mst.zip", TailLen: 222}
)

// Markets maps config names to master files.
var Markets = map[string]Market{
	KOSPI.Name:  KOSPI,
	KOSDAQ.Name: KOSDAQ,
}

func LookupMarket(name string) (Market, bool) {
	m, ok := Markets[strings.ToUpper(strings.TrimSpace(name))]
	return m, ok
}

const (
	shortCodeEnd    = 9
	standardCodeEnd = 21
)

// ParseArchive reads the single .mst member of a master zip.
func ParseArchive(data []byte, m Market) ([]types.Instrument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s master: %w", m.Name, err)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".mst") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s master %s: %w", m.Name, f.Name, err)
		}
		defer rc.Close()
		return Parse(rc, m)
	}
	return nil, fmt.Errorf("%s master: no .mst file in archive", m.Name)
}

// Parse reads master lines. Fields are sliced on bytes before decoding,
// since a CP949 Hangul character is two bytes wide.
func Parse(r io.Reader, m Market) ([]types.Instrument, error) {
	dec := korean.EUCKR.NewDecoder()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var out []types.Instrument
	for sc.Scan() {
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if len(line) <= m.TailLen+standardCodeEnd {
			continue
		}
		head := line[:len(line)-m.TailLen]

		name, err := dec.Bytes(head[standardCodeEnd:])
		if err != nil {
			return nil, fmt.Errorf("%s master: decode name: %w", m.Name, err)
		}
		code := strings.TrimSpace(string(head[:shortCodeEnd]))
		if code == "" {
			continue
		}
		out = append(out, types.Instrument{
			Code:         code,
			StandardCode: strings.TrimSpace(string(head[shortCodeEnd:standardCodeEnd])),
			Name:         strings.TrimSpace(string(name)),
			Market:       m.Name,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s master: %w", m.Name, err)
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
