package speech

import (
	"bytes"
	"testing"

	"github.com/bytedance/sonic"
)

func TestAudioBytesMarshalAsNumberArray(t *testing.T) {
	resp := VoiceAgentResponse{AudioData: AudioBytes{0, 7, 255}, Text: "hi"}

	data, err := sonic.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal err: %v", err)
	}

	if !bytes.Contains(data, []byte(`"audio_data":[0,7,255]`)) {
		t.Fatalf("unexpected encoding: %s", data)
	}
	if bytes.Contains(data, []byte("transcription")) {
		t.Fatalf("empty transcription should be omitted: %s", data)
	}
}

func TestAudioBytesUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNil bool
		want    []byte
		wantErr bool
	}{
		{name: "values", body: `{"audio_data":[1,2,3]}`, want: []byte{1, 2, 3}},
		{name: "missing", body: `{"text":"x"}`, wantNil: true},
		{name: "null", body: `{"audio_data":null}`, wantNil: true},
		{name: "empty", body: `{"audio_data":[]}`, want: []byte{}},
		{name: "out of range", body: `{"audio_data":[256]}`, wantErr: true},
		{name: "base64 string", body: `{"audio_data":"AQID"}`, wantErr: true},
	}

	for _, tt := range tests {
		var resp VoiceAgentResponse
		err := sonic.Unmarshal([]byte(tt.body), &resp)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if tt.wantNil {
			if resp.AudioData != nil {
				t.Errorf("%s: expected nil audio, got %v", tt.name, resp.AudioData)
			}
			continue
		}
		if resp.AudioData == nil || !bytes.Equal(resp.AudioData, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, resp.AudioData, tt.want)
		}
	}
}
