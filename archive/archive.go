// Package archive implements the binary model archive: the persistent form
// of a model. Each node is serialized as its composite type name (including
// the value-type suffix), a structural version, the input port bindings
// (upstream node id, output port name, element ranges) and a node-specific
// payload. Node kinds self-register a reader in their init functions, so
// reading dispatches on the archived type name.
//
// Constant payloads can optionally be stored in half precision (IEEE
// binary16) to shrink archives shipped to resource-constrained targets; see
// WithHalfPrecision.
package archive

import (
	"encoding/binary"
	"io"

	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/yosshor/ELL/model"
)

// Precision selects how float payloads are encoded.
type Precision uint8

const (
	// PrecisionFull stores values in their native width.
	PrecisionFull Precision = iota

	// PrecisionHalf stores float values as IEEE binary16. Control (int32)
	// payloads always stay full precision.
	PrecisionHalf
)

const (
	// "ELLM" little-endian.
	archiveMagic  = uint32(0x4D4C4C45)
	formatVersion = uint32(1)

	// maxSectionLen bounds every length prefix read from an archive, so a
	// corrupt length fails fast instead of demanding a huge allocation.
	// Generous for models aimed at constrained targets.
	maxSectionLen = 1 << 24
)

func checkSectionLen(n uint32, what string) error {
	if n > maxSectionLen {
		return errors.Errorf("archive %s length %d exceeds limit %d (corrupt archive?)", what, n, maxSectionLen)
	}
	return nil
}

var byteOrder = binary.LittleEndian

// Archiver is the capability of nodes that can round-trip through archives.
// Nodes without it make the model unarchivable (ErrNotImplemented).
type Archiver interface {
	model.Node

	// ArchiveVersion is the structural version of the node's payload.
	ArchiveVersion() uint32

	// WriteArchive writes the node-specific payload. Input bindings and the
	// type name are handled by the archive itself.
	WriteArchive(w *Writer) error
}

// NodeReader reconstructs one node from its archived header and payload,
// attaching it to m. Registered per type name via RegisterNodeType.
type NodeReader func(r *Reader, hdr NodeHeader, m *model.Model) error

var registry = map[string]NodeReader{}

// RegisterNodeType registers the reader for an archived node type name.
// Called from init functions of the packages defining node kinds.
func RegisterNodeType(typeName string, reader NodeReader) {
	if _, dup := registry[typeName]; dup {
		exceptions.Panicf("archive.RegisterNodeType: duplicate registration for %q", typeName)
	}
	registry[typeName] = reader
}

// InputBinding is the archived form of one input port's PortElements.
type InputBinding struct {
	Name   string
	Ranges []model.PortRange
}

// NodeHeader is the archived per-node envelope common to all node kinds.
type NodeHeader struct {
	TypeName string
	Version  uint32
	Inputs   []InputBinding
}

// Elements returns the binding archived for the named input port.
func (h NodeHeader) Elements(name string) (model.PortElements, bool) {
	for _, in := range h.Inputs {
		if in.Name == name {
			return model.FromRanges(in.Ranges), true
		}
	}
	return model.PortElements{}, false
}

// MustElements is Elements that panics (throw-and-catch convention) if the
// port is missing from the archive.
func (h NodeHeader) MustElements(name string) model.PortElements {
	e, ok := h.Elements(name)
	if !ok {
		exceptions.Panicf("archived node %q is missing input port %q", h.TypeName, name)
	}
	return e
}

// WriteOption configures Write.
type WriteOption func(*Writer)

// WithHalfPrecision stores float payloads as IEEE binary16.
func WithHalfPrecision() WriteOption {
	return func(w *Writer) { w.precision = PrecisionHalf }
}

// Write serializes the model. Every node must implement Archiver and have a
// registered reader counterpart; otherwise ErrNotImplemented is returned.
func Write(out io.Writer, m *model.Model, opts ...WriteOption) error {
	w := &Writer{w: out, precision: PrecisionFull}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.writeHeader(m); err != nil {
		return err
	}
	for _, n := range m.Nodes() {
		a, ok := n.(Archiver)
		if !ok {
			return errors.Wrapf(model.ErrNotImplemented, "node #%d (%s) does not support archiving", n.ID(), n.TypeName())
		}
		if err := w.writeNode(a); err != nil {
			return errors.WithMessagef(err, "archiving node #%d (%s)", n.ID(), n.TypeName())
		}
	}
	klog.V(1).Infof("archived model %q: %d nodes", m.Name(), m.NumNodes())
	return nil
}

// Read reconstructs a model from its archived form. Node ids are preserved:
// nodes were archived in arena order, so bindings resolve unchanged.
func Read(in io.Reader) (*model.Model, error) {
	r := &Reader{r: in}
	name, id, numNodes, err := r.readHeader()
	if err != nil {
		return nil, err
	}
	m := model.NewWithID(name, id)
	for ii := uint32(0); ii < numNodes; ii++ {
		hdr, err := r.readNodeHeader()
		if err != nil {
			return nil, errors.WithMessagef(err, "reading node #%d", ii)
		}
		reader, ok := registry[hdr.TypeName]
		if !ok {
			return nil, errors.Wrapf(model.ErrNotImplemented, "no reader registered for archived node type %q", hdr.TypeName)
		}
		err = exceptions.TryCatch[error](func() {
			err := reader(r, hdr, m)
			if err != nil {
				panic(err)
			}
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "reconstructing node #%d (%s)", ii, hdr.TypeName)
		}
		if m.NumNodes() != int(ii)+1 {
			return nil, errors.Errorf("reader for %q attached %d nodes, want exactly 1 (node ids must be preserved)",
				hdr.TypeName, m.NumNodes()-int(ii))
		}
	}
	return m, nil
}

// Writer serializes primitive values for node payloads.
type Writer struct {
	w         io.Writer
	precision Precision
}

// NewWriter wraps an io.Writer for standalone payload serialization at full
// precision. Write builds its own Writer; this exists for tools and tests.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w, precision: PrecisionFull} }

// NewReader wraps an io.Reader for standalone payload deserialization.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (w *Writer) writeHeader(m *model.Model) error {
	if err := w.WriteUint32(archiveMagic); err != nil {
		return err
	}
	if err := w.WriteUint32(formatVersion); err != nil {
		return err
	}
	if err := w.WriteString(m.Name()); err != nil {
		return err
	}
	id := m.ID()
	if err := binary.Write(w.w, byteOrder, id[:]); err != nil {
		return err
	}
	return w.WriteUint32(uint32(m.NumNodes()))
}

func (w *Writer) writeNode(a Archiver) error {
	if err := w.WriteString(a.TypeName()); err != nil {
		return err
	}
	if err := w.WriteUint32(a.ArchiveVersion()); err != nil {
		return err
	}
	inputs := a.Inputs()
	if err := w.WriteUint32(uint32(len(inputs))); err != nil {
		return err
	}
	for _, p := range inputs {
		if err := w.WriteString(p.Name()); err != nil {
			return err
		}
		ranges := p.Elements().Ranges()
		if err := w.WriteUint32(uint32(len(ranges))); err != nil {
			return err
		}
		for _, r := range ranges {
			for _, v := range []uint32{uint32(r.Node), uint32(r.Start), uint32(r.Count)} {
				if err := w.WriteUint32(v); err != nil {
					return err
				}
			}
			if err := w.WriteString(r.Port); err != nil {
				return err
			}
		}
	}
	return a.WriteArchive(w)
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := w.w.Write([]byte(s))
	return err
}

// WriteUint32 writes one little-endian uint32.
func (w *Writer) WriteUint32(v uint32) error {
	return binary.Write(w.w, byteOrder, v)
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) error {
	return binary.Write(w.w, byteOrder, v)
}

// WriteLayout writes a port memory layout.
func (w *Writer) WriteLayout(l model.PortMemoryLayout) error {
	if err := w.WriteUint32(uint32(l.Rank())); err != nil {
		return err
	}
	for _, dim := range l.Dimensions {
		if err := w.WriteUint32(uint32(dim)); err != nil {
			return err
		}
	}
	for _, axis := range l.Order {
		if err := w.WriteUint32(uint32(axis)); err != nil {
			return err
		}
	}
	return nil
}

// WriteValues writes a value slice, applying the writer's precision to
// float payloads. Control (int32) payloads always stay full width.
func WriteValues[T model.Value](w *Writer, values []T) error {
	precision := w.precision
	if _, isControl := any(values).([]int32); isControl {
		precision = PrecisionFull
	}
	if err := w.WriteUint32(uint32(len(values))); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(precision)); err != nil {
		return err
	}
	if precision == PrecisionHalf {
		bits := make([]uint16, len(values))
		for ii, v := range values {
			bits[ii] = float16.Fromfloat32(float32(v)).Bits()
		}
		return binary.Write(w.w, byteOrder, bits)
	}
	return binary.Write(w.w, byteOrder, values)
}

// Reader deserializes primitive values for node payloads.
type Reader struct {
	r io.Reader
}

func (r *Reader) readHeader() (name string, id uuid.UUID, numNodes uint32, err error) {
	var magic, version uint32
	if magic, err = r.ReadUint32(); err != nil {
		return
	}
	if magic != archiveMagic {
		err = errors.Errorf("bad archive magic %#x", magic)
		return
	}
	if version, err = r.ReadUint32(); err != nil {
		return
	}
	if version != formatVersion {
		err = errors.Errorf("unsupported archive format version %d", version)
		return
	}
	if name, err = r.ReadString(); err != nil {
		return
	}
	if err = binary.Read(r.r, byteOrder, id[:]); err != nil {
		return
	}
	if numNodes, err = r.ReadUint32(); err != nil {
		return
	}
	err = checkSectionLen(numNodes, "node count")
	return
}

func (r *Reader) readNodeHeader() (NodeHeader, error) {
	var hdr NodeHeader
	var err error
	if hdr.TypeName, err = r.ReadString(); err != nil {
		return hdr, err
	}
	if hdr.Version, err = r.ReadUint32(); err != nil {
		return hdr, err
	}
	numInputs, err := r.ReadUint32()
	if err != nil {
		return hdr, err
	}
	if err := checkSectionLen(numInputs, "input count"); err != nil {
		return hdr, err
	}
	hdr.Inputs = make([]InputBinding, numInputs)
	for ii := range hdr.Inputs {
		in := &hdr.Inputs[ii]
		if in.Name, err = r.ReadString(); err != nil {
			return hdr, err
		}
		numRanges, err := r.ReadUint32()
		if err != nil {
			return hdr, err
		}
		if err := checkSectionLen(numRanges, "range count"); err != nil {
			return hdr, err
		}
		in.Ranges = make([]model.PortRange, numRanges)
		for jj := range in.Ranges {
			pr := &in.Ranges[jj]
			var node, start, count uint32
			if node, err = r.ReadUint32(); err != nil {
				return hdr, err
			}
			if start, err = r.ReadUint32(); err != nil {
				return hdr, err
			}
			if count, err = r.ReadUint32(); err != nil {
				return hdr, err
			}
			if pr.Port, err = r.ReadString(); err != nil {
				return hdr, err
			}
			pr.Node = model.NodeID(node)
			pr.Start = int(start)
			pr.Count = int(count)
		}
	}
	return hdr, nil
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if err := checkSectionLen(n, "string"); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadUint32 reads one little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	var v uint32
	err := binary.Read(r.r, byteOrder, &v)
	return v, err
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	var v uint8
	err := binary.Read(r.r, byteOrder, &v)
	return v, err
}

// ReadLayout reads a port memory layout.
func (r *Reader) ReadLayout() (model.PortMemoryLayout, error) {
	rank, err := r.ReadUint32()
	if err != nil {
		return model.PortMemoryLayout{}, err
	}
	l := model.PortMemoryLayout{
		Dimensions: make([]int, rank),
		Order:      make(model.DimensionOrder, rank),
	}
	for ii := range l.Dimensions {
		v, err := r.ReadUint32()
		if err != nil {
			return l, err
		}
		l.Dimensions[ii] = int(v)
	}
	for ii := range l.Order {
		v, err := r.ReadUint32()
		if err != nil {
			return l, err
		}
		l.Order[ii] = int(v)
	}
	return l, nil
}

// ReadValues reads a value slice written by WriteValues.
func ReadValues[T model.Value](r *Reader) ([]T, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen(n, "values"); err != nil {
		return nil, err
	}
	precision, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	values := make([]T, n)
	switch Precision(precision) {
	case PrecisionFull:
		err = binary.Read(r.r, byteOrder, values)
	case PrecisionHalf:
		bits := make([]uint16, n)
		if err = binary.Read(r.r, byteOrder, bits); err != nil {
			break
		}
		for ii, b := range bits {
			values[ii] = T(float16.Frombits(b).Float32())
		}
	default:
		err = errors.Errorf("unknown payload precision %d", precision)
	}
	return values, err
}
