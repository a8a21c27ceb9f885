package partitions

import (
	"fmt"
	"math"
	"strings"
)

// PartitionBuilder splits a batch of cells into partitions
type PartitionBuilder struct {
	NumCells            int
	TargetPartitionSize int // Desired cells per partition
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how cells are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive cells
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout for the batch
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumCells <= 0 {
		return nil, fmt.Errorf("cannot partition %d cells", pb.NumCells)
	}
	if pb.TargetPartitionSize <= 0 {
		return nil, fmt.Errorf("invalid target partition size %d", pb.TargetPartitionSize)
	}

	numPartitions := pb.calculateNumPartitions()

	cToP, err := pb.partitionCells(numPartitions)
	if err != nil {
		return nil, err
	}

	partitions := pb.createPartitions(cToP, numPartitions)

	kpartMax := 0
	for _, p := range partitions {
		if p.NumCells > kpartMax {
			kpartMax = p.NumCells
		}
	}
	for i := range partitions {
		partitions[i].MaxCells = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalCells:    pb.NumCells,
		NumPartitions: numPartitions,
		CToP:          cToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count from the target size
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := int(math.Ceil(float64(pb.NumCells) / float64(pb.TargetPartitionSize)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionCells assigns cells to partitions
func (pb *PartitionBuilder) partitionCells(numPartitions int) ([]int, error) {
	cToP := make([]int, pb.NumCells)

	switch pb.Strategy {
	case BlockPartition:
		cellsPerPartition := int(math.Ceil(float64(pb.NumCells) / float64(numPartitions)))
		for i := 0; i < pb.NumCells; i++ {
			cToP[i] = i / cellsPerPartition
			if cToP[i] >= numPartitions {
				cToP[i] = numPartitions - 1
			}
		}

	case RoundRobin:
		for i := 0; i < pb.NumCells; i++ {
			cToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unsupported partition strategy %v", pb.Strategy)
	}

	return cToP, nil
}

// createPartitions builds partition structures from cell assignments
func (pb *PartitionBuilder) createPartitions(cToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i}
	}

	for cell, part := range cToP {
		partitions[part].Cells = append(partitions[part].Cells, cell)
		partitions[part].NumCells++
	}

	return partitions
}
