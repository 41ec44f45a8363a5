// Package benchutil provides synthetic xlog data generation for benchmarks and testing.
package benchutil

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// GeneratorConfig configures synthetic file generation.
type GeneratorConfig struct {
	// NumRecords is the number of records in the file.
	NumRecords int
	// LinesPerRecord is the number of log lines packed into each record.
	LinesPerRecord int
	// Magics are the record kinds to cycle through. TEA kinds need TEAKey.
	// If empty, only plain records are produced.
	Magics []xlog.Magic
	// TEAKey encrypts records of TEA kinds.
	TEAKey []byte
	// UID, when set, is embedded as "_uid=<UID>" in the first line.
	UID string
	// LeadingGarbage is the number of random bytes before the first record.
	LeadingGarbage int
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a mix of every kind that decodes without key material.
func DefaultConfig(numRecords int) GeneratorConfig {
	return GeneratorConfig{
		NumRecords:     numRecords,
		LinesPerRecord: 8,
		Magics: []xlog.Magic{
			xlog.MagicNoCompressStart,
			xlog.MagicCompressStart,
			xlog.MagicCompressStart1,
			xlog.MagicNoCompressStart1,
			xlog.MagicNoCompressNoCryptStart,
			xlog.MagicCompressNoCryptStart,
		},
		Seed: BenchmarkSeed,
	}
}

// File is a generated xlog buffer and the plaintext it decodes to.
type File struct {
	Data  []byte
	Plain []byte
	// Offsets holds the start offset of every record in Data.
	Offsets []int
}

// Generator generates synthetic xlog files.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	if cfg.LinesPerRecord <= 0 {
		cfg.LinesPerRecord = 1
	}
	if len(cfg.Magics) == 0 {
		cfg.Magics = []xlog.Magic{xlog.MagicNoCompressNoCryptStart}
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate builds a file with sequence numbers 1..NumRecords.
func (g *Generator) Generate() (File, error) {
	var data, plain bytes.Buffer
	offsets := make([]int, 0, g.cfg.NumRecords)

	for i := 0; i < g.cfg.LeadingGarbage; i++ {
		// Keep garbage outside the magic range so the start offset is predictable.
		data.WriteByte(byte(0x10 + g.rng.Intn(0xE0)))
	}

	for i := 0; i < g.cfg.NumRecords; i++ {
		text := g.recordText(i)
		spec := RecordSpec{
			Magic:     g.cfg.Magics[i%len(g.cfg.Magics)],
			Sequence:  uint16(i + 1),
			BeginHour: uint8(i % 24),
			EndHour:   uint8((i + 1) % 24),
			Plain:     text,
			TEAKey:    g.cfg.TEAKey,
		}
		rec, err := EncodeRecord(spec)
		if err != nil {
			return File{}, fmt.Errorf("record %d: %w", i, err)
		}
		offsets = append(offsets, data.Len())
		data.Write(rec)
		plain.Write(text)
	}

	return File{Data: data.Bytes(), Plain: plain.Bytes(), Offsets: offsets}, nil
}

var (
	levels = []string{"V", "D", "I", "W", "E"}
	tags   = []string{"net", "db", "ui", "push", "sync", "auth"}
	words  = []string{"request", "ok", "retry", "timeout", "cache", "miss", "flush", "session", "open", "closed"}
)

func (g *Generator) recordText(record int) []byte {
	var b bytes.Buffer
	for l := 0; l < g.cfg.LinesPerRecord; l++ {
		fmt.Fprintf(&b, "[%s][2024-03-%02d +8.0 %02d:%02d:%02d.%03d][%d, %d][%s]",
			levels[g.rng.Intn(len(levels))],
			1+record%28, g.rng.Intn(24), g.rng.Intn(60), g.rng.Intn(60), g.rng.Intn(1000),
			1000+g.rng.Intn(50), 1+g.rng.Intn(40),
			tags[g.rng.Intn(len(tags))])
		if record == 0 && l == 0 && g.cfg.UID != "" {
			fmt.Fprintf(&b, " login _uid=%s", g.cfg.UID)
		}
		n := 3 + g.rng.Intn(6)
		for w := 0; w < n; w++ {
			b.WriteByte(' ')
			b.WriteString(words[g.rng.Intn(len(words))])
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}
