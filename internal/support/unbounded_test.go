package support

import "testing"

func TestUnboundedPreservesAllItems(t *testing.T) {
	u := NewUnbounded[int]()
	go func() {
		for i := 0; i < 100; i++ {
			u.Send(i)
		}
		u.CloseSend()
	}()

	sum := 0
	count := 0
	for v := range u.Out() {
		sum += v
		count++
	}
	if count != 100 {
		t.Fatalf("received %d items, want 100", count)
	}
	if sum != 100*99/2 {
		t.Fatalf("sum = %d, want %d", sum, 100*99/2)
	}
}

func TestUnboundedSendNeverBlocksBeforeConsume(t *testing.T) {
	u := NewUnbounded[int]()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			u.Send(i)
		}
		u.CloseSend()
		close(done)
	}()
	<-done // producer must finish without a consumer ever reading Out()

	drained := 0
	for range u.Out() {
		drained++
	}
	if drained != 1000 {
		t.Fatalf("drained %d, want 1000", drained)
	}
}
