package partitions

import (
	"fmt"
	"math"
)

// Partition is a batch of cells processed together by one worker. Cells of a
// partition are independent of every other partition during a projection
// stage.
type Partition struct {
	ID int

	Cells    []int // Global cell indices in this partition
	NumCells int   // Actual number of cells
	MaxCells int   // Largest partition in the layout, for scratch sizing
}

// PartitionLayout manages the complete decomposition of a cell batch
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumCells) across all partitions
	TotalCells    int
	NumPartitions int

	// Cell to partition mapping
	CToP []int
}

// GetPartition returns the partition containing cell k
func (pl *PartitionLayout) GetPartition(cell int) int {
	if cell < 0 || cell >= len(pl.CToP) {
		return -1
	}
	return pl.CToP[cell]
}

// ValidateLayout checks that every cell is owned by exactly one partition and
// that the sizing information is consistent.
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax := 0
	seen := make([]bool, pl.TotalCells)
	for _, p := range pl.Partitions {
		if p.NumCells != len(p.Cells) {
			return fmt.Errorf("partition %d: NumCells %d != %d listed cells",
				p.ID, p.NumCells, len(p.Cells))
		}
		if p.NumCells > actualMax {
			actualMax = p.NumCells
		}
		if p.MaxCells != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxCells %d != KpartMax %d",
				p.ID, p.MaxCells, pl.KpartMax)
		}
		for _, c := range p.Cells {
			if c < 0 || c >= pl.TotalCells {
				return fmt.Errorf("partition %d: cell %d out of range", p.ID, c)
			}
			if seen[c] {
				return fmt.Errorf("partition %d: cell %d assigned twice", p.ID, c)
			}
			seen[c] = true
			if pl.CToP[c] != p.ID {
				return fmt.Errorf("cell %d: CToP says %d, listed in %d", c, pl.CToP[c], p.ID)
			}
		}
	}
	for c, ok := range seen {
		if !ok {
			return fmt.Errorf("cell %d is not assigned to any partition", c)
		}
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinCells:      math.MaxInt32,
		AvgCells:      float64(pl.TotalCells) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		if p.NumCells < stats.MinCells {
			stats.MinCells = p.NumCells
		}
		if p.NumCells > stats.MaxCells {
			stats.MaxCells = p.NumCells
		}
	}

	stats.Imbalance = float64(stats.MaxCells) / stats.AvgCells

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinCells      int
	MaxCells      int
	AvgCells      float64
	Imbalance     float64 // MaxCells / AvgCells
}
