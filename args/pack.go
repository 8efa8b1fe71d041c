package args

import (
	"fmt"

	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
)

// Block is an argument block that has been written to shared memory.
type Block struct {
	Region fabric.Region

	// Offset is where the block starts in shared memory. It is the value
	// that gets recorded in the control region.
	Offset uint32

	// Size is the padded size of the block.
	Size uint32
}

// Pack writes args into a freshly allocated region placed flush against the
// top of the argument area. Nothing is allocated if the arguments do not fit.
func Pack(driver fabric.Driver, layout ctrl.Layout, args [][]byte) (*Block, error) {
	buf, err := Encode(args, layout.MaxArgs, layout.MaxArgsSize)
	if err != nil {
		return nil, err
	}

	total := uint32(len(buf))
	if total > layout.ArgsEnd {
		return nil, fmt.Errorf("%w: argument block of %d bytes below offset 0",
			ctrl.ErrResourceExhausted, total)
	}

	offset := layout.ArgsEnd - total
	region, err := driver.Alloc(offset, total)
	if err != nil {
		return nil, fmt.Errorf("%w: argument block at %#x: %w",
			ctrl.ErrResourceExhausted, offset, err)
	}

	header := HeaderSize(layout.MaxArgs)
	if err := region.Write(0, 0, 0, buf[:header]); err != nil {
		_ = region.Free()
		return nil, fmt.Errorf("%w: write argument header: %w", ctrl.ErrIoFailure, err)
	}

	offs := header
	for i, a := range args {
		if len(a) == 0 {
			continue
		}
		if err := region.Write(0, 0, offs, a); err != nil {
			_ = region.Free()
			return nil, fmt.Errorf("%w: write argument %d: %w", ctrl.ErrIoFailure, i, err)
		}
		offs += uint32(len(a))
	}

	// Padding is cleared so the block does not carry bytes of an earlier call.
	if offs < total {
		if err := region.Write(0, 0, offs, buf[offs:]); err != nil {
			_ = region.Free()
			return nil, fmt.Errorf("%w: write argument padding: %w", ctrl.ErrIoFailure, err)
		}
	}

	return &Block{Region: region, Offset: offset, Size: total}, nil
}
