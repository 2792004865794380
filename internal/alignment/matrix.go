package alignment

import (
	"bufio"
	_ "embed"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

//go:embed blosum62.txt
var blosum62Text string

// SubstitutionMatrix scores residue substitutions. Lookups are case-insensitive;
// residues absent from the matrix score as the '*' row when it exists.
type SubstitutionMatrix struct {
	Name    string
	letters string
	index   [256]int
	scores  [][]int
}

var (
	blosumOnce sync.Once
	blosum62   *SubstitutionMatrix
)

// BLOSUM62 returns the shared BLOSUM62 matrix.
func BLOSUM62() *SubstitutionMatrix {
	blosumOnce.Do(func() {
		m, err := ParseMatrix(strings.NewReader(blosum62Text))
		if err != nil {
			panic("alignment: embedded BLOSUM62 is invalid: " + err.Error())
		}
		m.Name = "BLOSUM62"
		blosum62 = m
	})
	return blosum62
}

// ParseMatrix reads a substitution matrix in NCBI text format: '#' comment
// lines, a header row of residue letters, then one row per letter.
func ParseMatrix(r io.Reader) (*SubstitutionMatrix, error) {
	m := &SubstitutionMatrix{}
	for i := range m.index {
		m.index[i] = -1
	}

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		if m.letters == "" {
			for _, f := range fields {
				if len(f) != 1 {
					return nil, eris.Errorf("matrix: line %d: header entry %q is not a single residue", lineNo, f)
				}
				m.letters += f
			}
			for i := 0; i < len(m.letters); i++ {
				m.index[upper(m.letters[i])] = i
			}
			m.scores = make([][]int, len(m.letters))
			continue
		}

		if len(fields) != len(m.letters)+1 || len(fields[0]) != 1 {
			return nil, eris.Errorf("matrix: line %d: expected %d scores", lineNo, len(m.letters))
		}
		row := m.index[upper(fields[0][0])]
		if row < 0 {
			return nil, eris.Errorf("matrix: line %d: row residue %q not in header", lineNo, fields[0])
		}
		scores := make([]int, len(m.letters))
		for j, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, eris.Wrapf(err, "matrix: line %d: parse score", lineNo)
			}
			scores[j] = v
		}
		m.scores[row] = scores
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "matrix: read")
	}

	if m.letters == "" {
		return nil, eris.New("matrix: no header row")
	}
	for i, row := range m.scores {
		if row == nil {
			return nil, eris.Errorf("matrix: missing row for residue %q", m.letters[i])
		}
	}
	return m, nil
}

// Letters returns the residue alphabet in header order.
func (m *SubstitutionMatrix) Letters() string {
	return m.letters
}

// Score returns the substitution score for residues a and b.
func (m *SubstitutionMatrix) Score(a, b byte) int {
	return m.scores[m.lookup(a)][m.lookup(b)]
}

func (m *SubstitutionMatrix) lookup(r byte) int {
	if i := m.index[upper(r)]; i >= 0 {
		return i
	}
	if i := m.index['*']; i >= 0 {
		return i
	}
	return 0
}

func upper(r byte) byte {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}
