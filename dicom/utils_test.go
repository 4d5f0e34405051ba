package dicom

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

func dcmReaderFromBytes(data []byte) *dcmReader {
	return newDcmReader(bytes.NewBuffer(data))
}

func readElementFromBytes(data []byte, syntax TransferSyntax, opts ...ParseOption) (*DataElement, error) {
	md := dicomMetaData{syntax, defaultRepertoire}
	return readDataElement(dcmReaderFromBytes(data), &md, newParseConfig(opts...), 0)
}

func mustDataSet(t *testing.T, elements ...*DataElement) *DataSet {
	t.Helper()
	ds, err := NewDataSetFromElements(elements...)
	if err != nil {
		t.Fatalf("NewDataSetFromElements(_) => %v", err)
	}
	return ds
}

func createSingletonSequence(t *testing.T, elements ...*DataElement) *Sequence {
	t.Helper()
	return &Sequence{Items: []*DataSet{mustDataSet(t, elements...)}}
}

// testFileBytes assembles a minimal DICOM file: preamble, DICM, a meta header
// declaring the given transfer syntax and the raw data set bytes that follow.
func testFileBytes(syntaxUID string, body []byte) []byte {
	uidBytes := []byte(syntaxUID)
	if len(uidBytes)%2 != 0 {
		uidBytes = append(uidBytes, 0x00)
	}

	var meta bytes.Buffer
	mdw := &dcmWriter{&meta}
	mdw.Tag(binary.LittleEndian, TransferSyntaxUIDTag)
	mdw.String("UI")
	mdw.UInt16(binary.LittleEndian, uint16(len(uidBytes)))
	mdw.Bytes(uidBytes)

	var buf bytes.Buffer
	dw := &dcmWriter{&buf}
	writeDicomSignature(dw)
	dw.Tag(binary.LittleEndian, FileMetaInformationGroupLengthTag)
	dw.String("UL")
	dw.UInt16(binary.LittleEndian, 4)
	dw.UInt32(binary.LittleEndian, uint32(meta.Len()))
	dw.Bytes(meta.Bytes())
	dw.Bytes(body)
	return buf.Bytes()
}

// explicitElem encodes one explicit VR little endian element.
func explicitElem(tag DataElementTag, vrName string, value []byte) []byte {
	vr := vrLookupMap[vrName]
	var buf bytes.Buffer
	dw := &dcmWriter{&buf}
	dw.Tag(binary.LittleEndian, tag)
	dw.String(vrName)
	if vr.has32BitLength() {
		dw.UInt16(binary.LittleEndian, 0)
		dw.UInt32(binary.LittleEndian, uint32(len(value)))
	} else {
		dw.UInt16(binary.LittleEndian, uint16(len(value)))
	}
	dw.Bytes(value)
	return buf.Bytes()
}

// implicitElem encodes one implicit VR little endian element.
func implicitElem(tag DataElementTag, value []byte) []byte {
	var buf bytes.Buffer
	dw := &dcmWriter{&buf}
	dw.Tag(binary.LittleEndian, tag)
	dw.UInt32(binary.LittleEndian, uint32(len(value)))
	dw.Bytes(value)
	return buf.Bytes()
}

func concat(chunks ...[]byte) []byte {
	return bytes.Join(chunks, nil)
}

func compareDataElements(t *testing.T, got, want *DataElement) {
	t.Helper()
	if got == nil || want == nil {
		if got != want {
			t.Fatalf("expected both elements to be nil: got %v, want %v", got, want)
		}
		return
	}
	if got.Tag != want.Tag {
		t.Fatalf("expected tags to be equal: got %v, want %v", got.Tag, want.Tag)
	}
	if got.VR != want.VR {
		t.Fatalf("%v: expected VRs to be equal: got %v, want %v", got.Tag, got.VR, want.VR)
	}

	if gotSeq, ok := got.ValueField.(*Sequence); ok {
		compareSequences(t, gotSeq, want.ValueField.(*Sequence))
		return
	}
	if !reflect.DeepEqual(got.ValueField, want.ValueField) {
		t.Fatalf("%v: expected ValueFields to be equal: got %#v, want %#v",
			got.Tag, got.ValueField, want.ValueField)
	}
}

func compareSequences(t *testing.T, got, want *Sequence) {
	t.Helper()
	if len(got.Items) != len(want.Items) {
		t.Fatalf("expected sequences to have same length: got %v, want %v",
			len(got.Items), len(want.Items))
	}
	for i := range got.Items {
		compareDataSets(t, got.Items[i], want.Items[i])
	}
}

func compareDataSets(t *testing.T, got, want *DataSet) {
	t.Helper()
	if !reflect.DeepEqual(got.Tags(), want.Tags()) {
		t.Fatalf("expected datasets to have same keys in same order: got %v, want %v",
			got.Tags(), want.Tags())
	}
	for _, tag := range got.Tags() {
		g, _ := got.Get(tag)
		w, _ := want.Get(tag)
		compareDataElements(t, g, w)
	}
}
