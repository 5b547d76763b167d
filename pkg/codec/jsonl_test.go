package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"contextdb/pkg/models"
)

func sample(n int) []models.MessageRecord {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.MessageRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.MessageRecord{
			ID:        string(rune('a' + i)),
			Sender:    "user",
			Text:      "hello",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	recs := sample(3)
	recs[1].Embedding = []byte(`[0.1,0.2]`)

	var blob bytes.Buffer
	for _, m := range recs {
		line, err := EncodeLine(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		blob.Write(line)
		blob.WriteByte('\n')
	}

	got, err := DecodeAll(blob.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("expected %d records, got %d", len(recs), len(got))
	}
	for i := range recs {
		if got[i].ID != recs[i].ID || got[i].Text != recs[i].Text || !got[i].CreatedAt.Equal(recs[i].CreatedAt) {
			t.Fatalf("record %d mismatch: %+v vs %+v", i, got[i], recs[i])
		}
	}
	if string(got[1].Embedding) != `[0.1,0.2]` {
		t.Fatalf("embedding not preserved verbatim: %s", got[1].Embedding)
	}
}

func TestDecodeAll_SkipsBlankLines(t *testing.T) {
	blob := []byte("\n{\"id\":\"a\",\"text\":\"x\"}\n\n{\"id\":\"b\",\"text\":\"y\"}\n\n")
	got, err := DecodeAll(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected decode result: %+v", got)
	}
}

func TestDecodeAll_EmptyBlobIsEmptyLog(t *testing.T) {
	for _, blob := range [][]byte{nil, {}, []byte("\n\n")} {
		got, err := DecodeAll(blob)
		if err != nil {
			t.Fatalf("DecodeAll(%q): %v", blob, err)
		}
		if got == nil {
			t.Fatalf("DecodeAll(%q) returned a nil slice; callers serialize it as a JSON array", blob)
		}
		if len(got) != 0 {
			t.Fatalf("DecodeAll(%q): expected no records, got %d", blob, len(got))
		}
	}
}

func TestDecodeAll_FailsFastWithLineNumber(t *testing.T) {
	blob := []byte("{\"id\":\"a\",\"text\":\"x\"}\n\nnot json\n{\"id\":\"b\",\"text\":\"y\"}\n")
	_, err := DecodeAll(blob)
	if err == nil {
		t.Fatal("expected error for malformed blob")
	}
	var mle *MalformedLineError
	if !errors.As(err, &mle) {
		t.Fatalf("expected MalformedLineError, got %T", err)
	}
	// blank line between records does not count
	if mle.Line != 2 {
		t.Fatalf("expected failure on non-blank line 2, got %d", mle.Line)
	}
}

func TestDecodeLine_RejectsNonObjects(t *testing.T) {
	for _, in := range []string{`[1,2]`, `"text"`, `42`, `{"id":"a"`} {
		if _, err := DecodeLine([]byte(in)); err == nil {
			t.Fatalf("DecodeLine(%q): expected error", in)
		}
	}
}

func TestDecodeLine_ContentAlias(t *testing.T) {
	m, err := DecodeLine([]byte(`{"id":"a","sender":"user","content":"hi"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Text != "hi" {
		t.Fatalf("content alias not applied: %+v", m)
	}
}
