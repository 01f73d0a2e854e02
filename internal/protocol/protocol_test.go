package protocol

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/edirooss/crescentd/internal/descriptor"
)

func TestMarshalShapes(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want string
	}{
		{"ping", Ping(), `{"Ping":null}`},
		{"stop", Stop(), `{"Stop":null}`},
		{"write_stdin", WriteStdin("say hi"), `{"WriteStdin":"say hi"}`},
		{"history_empty", CommandHistoryRequest(), `{"CommandHistory":[]}`},
		{"history", CommandHistoryReply([]string{"prev", "earlier"}), `{"CommandHistory":["prev","earlier"]}`},
		{"app_info_req", RetrieveAppInfoRequest(), `{"RetrieveAppInfo":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.ev)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tc.want {
				t.Fatalf("got %s, want %s", b, tc.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	events := []Event{
		Ping(),
		Stop(),
		WriteStdin("hello world"),
		CommandHistoryRequest(),
		CommandHistoryReply([]string{"b", "a"}),
		RetrieveAppInfoRequest(),
		RetrieveAppInfoReply(&descriptor.Descriptor{
			Name:           "echo1",
			ExecutablePath: "/bin/cat",
		}),
	}

	for _, want := range events {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got Event
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		b2, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("Marshal(got): %v", err)
		}
		if string(b) != string(b2) {
			t.Fatalf("round-trip mismatch: %s != %s", b, b2)
		}
	}
}

func TestUnknownVariantReturnsErrUnknownVariant(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"Frobnicate":null}`), &e)
	if err == nil {
		t.Fatalf("expected error for unknown variant")
	}
	if _, ok := err.(*ErrUnknownVariant); !ok {
		var uv *ErrUnknownVariant
		// json.Unmarshal returns UnmarshalJSON's error as-is, so this
		// should already be the concrete type; check it once more.
		if !asUnknownVariant(err, &uv) {
			t.Fatalf("expected ErrUnknownVariant, got %T: %v", err, err)
		}
	}
}

func asUnknownVariant(err error, target **ErrUnknownVariant) bool {
	if uv, ok := err.(*ErrUnknownVariant); ok {
		*target = uv
		return true
	}
	return false
}

func TestCodecReadWritePingTwice(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverCodec := NewCodec(server)
	clientCodec := NewCodec(client)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 2; i++ {
			ev, err := serverCodec.ReadEvent()
			if err != nil {
				done <- err
				return
			}
			if ev.Kind != KindPing {
				done <- errUnexpectedKind(ev.Kind)
				return
			}
			if err := serverCodec.WriteEvent(Ping()); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < 2; i++ {
		if err := clientCodec.WriteEvent(Ping()); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
		reply, err := clientCodec.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent: %v", err)
		}
		if reply.Kind != KindPing {
			t.Fatalf("reply kind = %v", reply.Kind)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("server goroutine: %v", err)
	}
}

type unexpectedKindError struct{ kind Kind }

func (e unexpectedKindError) Error() string { return "unexpected kind: " + string(e.kind) }

func errUnexpectedKind(k Kind) error { return unexpectedKindError{kind: k} }
