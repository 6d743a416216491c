// Package testkit holds checks shared by the tests of the rewriting passes.
package testkit

import (
	"context"
	"errors"
	"fmt"

	"ampcap/internal/container"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
)

// CheckBlobInvariants verifies that the program and the pipeline state of an
// amplification blob describe the same shader:
// 1) the program decodes and passes ir.Check
// 2) the amplification tag and the pipeline state agree on numthreads and payload size
// 3) every UAV record of the entry has a pipeline state resource covering its registers
func CheckBlobInvariants(blob []byte) error {
	ed, err := editor.New(context.Background(), blob, editor.Options{})
	if err != nil {
		return err
	}
	ps, err := ed.PipelineState()
	if err != nil {
		return err
	}
	if ps.Stage != container.StageAmplification {
		return fmt.Errorf("pipeline state stage %d is not amplification", ps.Stage)
	}
	amp, err := ed.AmplificationTag()
	if err != nil {
		return err
	}
	var errs []error
	if amp.NumThreads != ps.NumThreads {
		errs = append(errs, fmt.Errorf("numthreads: tag %v, pipeline state %v", amp.NumThreads, ps.NumThreads))
	}
	if amp.PayloadSize != ps.PayloadSize {
		errs = append(errs, fmt.Errorf("payload size: tag %d, pipeline state %d", amp.PayloadSize, ps.PayloadSize))
	}

	entry, err := ed.EntryPoint()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	p := ed.Program()
	for i, rec := range uavRecords(p, entry) {
		n := p.MetaNode(rec)
		if n == nil || len(n.Children) < ir.UAVFieldTotal {
			errs = append(errs, fmt.Errorf("UAV record %d is malformed", i))
			continue
		}
		space, ok1 := p.MetaU32(n.Children[ir.UAVFieldSpace])
		base, ok2 := p.MetaU32(n.Children[ir.UAVFieldBase])
		count, ok3 := p.MetaU32(n.Children[ir.UAVFieldCount])
		if !ok1 || !ok2 || !ok3 || count == 0 {
			errs = append(errs, fmt.Errorf("UAV record %d has a bad binding", i))
			continue
		}
		if !covered(ps, space, base, base+count-1) {
			errs = append(errs, fmt.Errorf("UAV record %d (space %d, u%d) has no pipeline state resource", i, space, base))
		}
	}
	return errors.Join(errs...)
}

func uavRecords(p *ir.Program, entry editor.Entry) []ir.MetaID {
	n := p.MetaNode(entry.Node)
	if n == nil || len(n.Children) <= ir.EntryResources {
		return nil
	}
	reslist := p.MetaNode(n.Children[ir.EntryResources])
	if reslist == nil || len(reslist.Children) <= ir.ResClassUAV {
		return nil
	}
	uavs := p.MetaNode(reslist.Children[ir.ResClassUAV])
	if uavs == nil {
		return nil
	}
	return uavs.Children
}

func covered(ps *container.PipelineState, space, lo, hi uint32) bool {
	for _, r := range ps.Resources {
		if r.Space == space && r.LowerBound <= lo && hi <= r.UpperBound {
			return true
		}
	}
	return false
}
