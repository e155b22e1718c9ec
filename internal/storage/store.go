// Package storage persists continuation runs on disk: one directory per
// run holding JSON metadata (including detected special points) and a
// CSV of the branch points, so diagrams can be replotted and compared
// without rerunning the solver.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/bifurc/internal/continuation"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type SpecialMeta struct {
	Type  string  `json:"type"`
	P     float64 `json:"p"`
	Index int     `json:"index"`
	Label string  `json:"label,omitempty"`
}

type RunMetadata struct {
	ID        string        `json:"id"`
	Problem   string        `json:"problem"`
	Timestamp time.Time     `json:"timestamp"`
	Param     float64       `json:"param"`
	Ds        float64       `json:"ds"`
	Steps     int           `json:"steps"`
	Status    string        `json:"status"`
	Special   []SpecialMeta `json:"special"`
}

// Save writes metadata.json and branch.csv for one traced branch and
// returns the generated run ID.
func (s *Store) Save(problem string, param, ds float64, br *continuation.Branch) (string, error) {
	runID := fmt.Sprintf("%s_%d", problem, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Problem:   problem,
		Timestamp: time.Now(),
		Param:     param,
		Ds:        ds,
		Steps:     br.Len(),
		Status:    br.Status.String(),
	}
	for _, sp := range br.Special {
		meta.Special = append(meta.Special, SpecialMeta{
			Type:  sp.Type.String(),
			P:     sp.P,
			Index: sp.Index,
			Label: sp.Label,
		})
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "branch.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if br.Len() == 0 {
		return runID, nil
	}

	header := []string{"p", "n_unstable"}
	for i := range br.Points[0].X {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, snap := range br.Points {
		row := []string{
			strconv.FormatFloat(snap.P, 'g', 12, 64),
			strconv.Itoa(snap.NUnstable),
		}
		for _, val := range snap.X {
			row = append(row, strconv.FormatFloat(val, 'g', 12, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadBranch reads back the branch points: the parameter column, the
// unstable counts and the state rows.
func (s *Store) LoadBranch(runID string) (params []float64, unstable []int, states [][]float64, err error) {
	csvPath := filepath.Join(s.baseDir, runID, "branch.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, []int{}, [][]float64{}, nil
	}

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 3 {
			continue
		}
		p, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		nu, err := strconv.Atoi(record[1])
		if err != nil {
			continue
		}
		state := make([]float64, 0, len(record)-2)
		for j := 2; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			state = append(state, val)
		}
		params = append(params, p)
		unstable = append(unstable, nu)
		states = append(states, state)
	}

	return params, unstable, states, nil
}

type exportData struct {
	RunMetadata
	Params   []float64   `json:"params"`
	Unstable []int       `json:"n_unstable"`
	States   [][]float64 `json:"states"`
}

// ExportJSON writes one saved run, metadata and points together, to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	params, unstable, states, err := s.LoadBranch(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportData{
		RunMetadata: *meta,
		Params:      params,
		Unstable:    unstable,
		States:      states,
	})
}
