package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	r := Record{
		PID:         1234,
		TID:         5678,
		TimestampNS: 99887766,
		Kind:        KindBlockingDetected,
		Detection:   DetectionScheduler,
		StackID:     42,
		DurationNS:  7_500_000,
		WorkerIndex: 3,
		CPU:         1,
	}

	got, err := DecodeRecord(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestRecordSize(t *testing.T) {
	r := Record{}
	require.Len(t, r.Encode(), RecordSize)
}

func TestDecodeRecordShort(t *testing.T) {
	_, err := DecodeRecord(make([]byte, 4))
	require.Error(t, err)
}

func TestHasStack(t *testing.T) {
	r := Record{StackID: NoStack}
	require.False(t, r.HasStack(), "NoStack sentinel should report HasStack() == false")

	r.StackID = 7
	require.True(t, r.HasStack(), "non-sentinel StackID should report HasStack() == true")
}

func TestEventKindString(t *testing.T) {
	cases := map[EventKind]string{
		KindBlockingDetected: "BLOCKING_DETECTED",
		KindCPUSample:        "CPU_SAMPLE",
		EventKind(200):       "UNKNOWN",
	}
	for k, want := range cases {
		require.Equal(t, want, k.String())
	}
}

func TestDetectionMethodString(t *testing.T) {
	cases := map[DetectionMethod]string{
		DetectionMarker:    "marker",
		DetectionScheduler: "scheduler",
		DetectionExecution: "execution",
		DetectionSample:    "sample",
		DetectionNone:      "none",
	}
	for d, want := range cases {
		require.Equal(t, want, d.String())
	}
}

func TestStackTraceAddresses(t *testing.T) {
	var s StackTrace
	s.IPs[0] = 0x1000
	s.IPs[1] = 0x2000
	s.Len = 2
	addrs := s.Addresses()
	require.Equal(t, []uint64{0x1000, 0x2000}, addrs)
}
