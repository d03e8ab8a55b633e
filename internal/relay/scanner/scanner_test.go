package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/chain"
)

const testTopic0 = "0x" + "11" + "00000000000000000000000000000000000000000000000000000000000000"

// fakeSource implements chain.Client for scanner tests. Only Logs and
// ChainID are exercised here.
type fakeSource struct {
	logs []domain.RawLog
	err  error
}

func (f *fakeSource) ChainID() domain.ChainID { return domain.ChainIDEthereum }
func (f *fakeSource) TipHeight(ctx context.Context) (uint64, error) {
	return 0, errors.New("not used")
}
func (f *fakeSource) Logs(ctx context.Context, from, to uint64, _ chain.LogFilter) ([]domain.RawLog, error) {
	return f.logs, f.err
}
func (f *fakeSource) Sign(domain.RelayAction, string) (chain.SignedAction, error) {
	return chain.SignedAction{}, errors.New("not used")
}
func (f *fakeSource) Submit(context.Context, chain.SignedAction) (chain.SubmissionHandle, error) {
	return chain.SubmissionHandle{}, errors.New("not used")
}
func (f *fakeSource) Ping(context.Context) error { return nil }

func addressTopic(addr string) string {
	return fmt.Sprintf("0x%024x%s", 0, addr[2:])
}

func lockedLog(block uint64, index uint32, amount uint64) domain.RawLog {
	return domain.RawLog{
		Address: "0xbridge",
		Topics: []string{
			testTopic0,
			addressTopic("0x00000000000000000000000000000000000000aa"), // token
			addressTopic("0x00000000000000000000000000000000000000bb"), // sender
			addressTopic("0x00000000000000000000000000000000000000cc"), // recipient
		},
		Data:        fmt.Sprintf("0x%064x%064x", amount, 137),
		BlockNumber: block,
		TxHash:      fmt.Sprintf("0x%064x", block*1000+uint64(index)),
		LogIndex:    index,
	}
}

func newTestScanner(src *fakeSource) *Scanner {
	return New(src, chain.LogFilter{Address: "0xbridge", Topic0: testTopic0}, nil)
}

func TestScan_OrdersEvents(t *testing.T) {
	// Deliberately unordered input: ordering is a hard guarantee of Scan.
	src := &fakeSource{logs: []domain.RawLog{
		lockedLog(105, 3, 1),
		lockedLog(101, 7, 2),
		lockedLog(105, 0, 3),
		lockedLog(103, 1, 4),
	}}

	events, err := newTestScanner(src).Scan(context.Background(), domain.ScanWindow{From: 101, To: 110})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	wantOrder := []struct {
		block uint64
		index uint32
	}{{101, 7}, {103, 1}, {105, 0}, {105, 3}}
	for i, w := range wantOrder {
		if events[i].BlockNumber != w.block || events[i].LogIndex != w.index {
			t.Errorf("events[%d] = (%d,%d), want (%d,%d)",
				i, events[i].BlockNumber, events[i].LogIndex, w.block, w.index)
		}
	}
}

func TestScan_NormalizesFields(t *testing.T) {
	src := &fakeSource{logs: []domain.RawLog{lockedLog(101, 0, 500)}}

	events, err := newTestScanner(src).Scan(context.Background(), domain.ScanWindow{From: 101, To: 101})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.SourceChainID != domain.ChainIDEthereum {
		t.Errorf("chain id = %s", ev.SourceChainID)
	}
	if ev.AssetID != "0x00000000000000000000000000000000000000aa" {
		t.Errorf("asset = %s", ev.AssetID)
	}
	if ev.Sender != "0x00000000000000000000000000000000000000bb" {
		t.Errorf("sender = %s", ev.Sender)
	}
	if ev.Recipient != "0x00000000000000000000000000000000000000cc" {
		t.Errorf("recipient = %s", ev.Recipient)
	}
	if ev.Amount.Uint64() != 500 {
		t.Errorf("amount = %s", ev.Amount)
	}
}

func TestScan_FiltersMalformedSilently(t *testing.T) {
	good := lockedLog(101, 0, 1)

	missingTopics := lockedLog(102, 0, 1)
	missingTopics.Topics = missingTopics.Topics[:2]

	wrongSignature := lockedLog(103, 0, 1)
	wrongSignature.Topics[0] = "0x" + "ff" + "00000000000000000000000000000000000000000000000000000000000000"

	shortData := lockedLog(104, 0, 1)
	shortData.Data = "0x1234"

	removed := lockedLog(105, 0, 1)
	removed.Removed = true

	src := &fakeSource{logs: []domain.RawLog{good, missingTopics, wrongSignature, shortData, removed}}

	events, err := newTestScanner(src).Scan(context.Background(), domain.ScanWindow{From: 101, To: 110})
	if err != nil {
		t.Fatalf("malformed logs must not error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the good event, got %d", len(events))
	}
	if events[0].BlockNumber != 101 {
		t.Errorf("surviving event block = %d", events[0].BlockNumber)
	}
}

func TestScan_PropagatesFetchError(t *testing.T) {
	fetchErr := errors.New("connection refused")
	src := &fakeSource{err: fetchErr}

	_, err := newTestScanner(src).Scan(context.Background(), domain.ScanWindow{From: 1, To: 10})
	if !errors.Is(err, fetchErr) {
		t.Errorf("expected wrapped fetch error, got %v", err)
	}
}
