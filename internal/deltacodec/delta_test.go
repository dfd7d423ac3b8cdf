package deltacodec

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRoundtripIdentical(t *testing.T) {
	original := []byte("hello world, this is a test of delta roundtrip behavior")
	d, err := CreateBytes(original, original)
	if err != nil {
		t.Fatalf("CreateBytes: %v", err)
	}
	for _, op := range d.Ops {
		if op.Kind != OpKeep {
			t.Errorf("expected all-Keep ops for identical content, got %s at %d", op.Kind, op.Index)
		}
	}
	got, err := ApplyBytes(original, d)
	if err != nil {
		t.Fatalf("ApplyBytes: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Error("roundtrip did not reproduce original content")
	}
}

func TestRoundtripSingleByteEdit(t *testing.T) {
	original := bytes.Repeat([]byte{0xAB}, BlockSize*3)
	modified := append([]byte(nil), original...)
	modified[BlockSize+5000%BlockSize] = 0xFF // mutate a byte inside block 1

	d, err := CreateBytes(original, modified)
	if err != nil {
		t.Fatalf("CreateBytes: %v", err)
	}

	var keeps, replaces int
	for _, op := range d.Ops {
		switch op.Kind {
		case OpKeep:
			keeps++
		case OpReplace:
			replaces++
		}
	}
	if replaces != 1 {
		t.Errorf("expected exactly 1 Replace op, got %d", replaces)
	}
	if keeps != 2 {
		t.Errorf("expected exactly 2 Keep ops, got %d", keeps)
	}

	got, err := ApplyBytes(original, d)
	if err != nil {
		t.Fatalf("ApplyBytes: %v", err)
	}
	if !bytes.Equal(got, modified) {
		t.Error("roundtrip did not reproduce modified content")
	}
}

func TestRoundtripGrowAndShrink(t *testing.T) {
	cases := [][2][]byte{
		{bytes.Repeat([]byte("a"), 10), bytes.Repeat([]byte("a"), BlockSize*2+3)},
		{bytes.Repeat([]byte("a"), BlockSize*2+3), bytes.Repeat([]byte("a"), 10)},
		{nil, []byte("new content from nothing")},
		{[]byte("old content going to nothing"), nil},
	}
	for i, c := range cases {
		d, err := CreateBytes(c[0], c[1])
		if err != nil {
			t.Fatalf("case %d: CreateBytes: %v", i, err)
		}
		got, err := ApplyBytes(c[0], d)
		if err != nil {
			t.Fatalf("case %d: ApplyBytes: %v", i, err)
		}
		if !bytes.Equal(got, c[1]) {
			t.Errorf("case %d: roundtrip mismatch", i)
		}
	}
}

func TestApplyCorruptOriginal(t *testing.T) {
	original := []byte("version one")
	d, _ := CreateBytes(original, []byte("version two"))
	_, err := ApplyBytes([]byte("not the original at all"), d)
	if err == nil {
		t.Fatal("expected error when original content has changed underneath the delta")
	}
}

func TestSaveLoadFileRoundtrip(t *testing.T) {
	dir := t.TempDir()
	original := bytes.Repeat([]byte{1, 2, 3}, BlockSize)
	modified := append([]byte(nil), original...)
	modified[0] = 99

	d, err := CreateBytes(original, modified)
	if err != nil {
		t.Fatalf("CreateBytes: %v", err)
	}

	path := filepath.Join(dir, "file.delta")
	if err := SaveFile(path, d); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.OriginalHash != d.OriginalHash || loaded.NewHash != d.NewHash {
		t.Error("loaded delta hashes don't match saved delta")
	}

	got, err := ApplyBytes(original, loaded)
	if err != nil {
		t.Fatalf("ApplyBytes on loaded delta: %v", err)
	}
	if !bytes.Equal(got, modified) {
		t.Error("roundtrip through disk did not reproduce modified content")
	}
}

func TestLoadTruncatedBlobIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.delta")
	if err := os.WriteFile(path, []byte("{not valid json"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error loading truncated/invalid delta blob")
	}
}
