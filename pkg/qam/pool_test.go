package qam

import (
	"sync"
	"testing"
)

func TestSymbolPool(t *testing.T) {
	pool := newSymbolPool()

	t.Run("Size Classes", func(t *testing.T) {
		for _, size := range []int{0, 1, smallBufferSize, smallBufferSize + 1, mediumBufferSize, largeBufferSize} {
			buffer := pool.get(size)
			if len(buffer.values) != size {
				t.Errorf("Expected %d values, got %d", size, len(buffer.values))
			}
			if cap(buffer.values) != pool.sizes[pool.class(size)] {
				t.Errorf("Expected capacity of class for %d, got %d", size, cap(buffer.values))
			}
			buffer.Release()
		}
	})

	t.Run("Oversize", func(t *testing.T) {
		before := pool.stats().Oversize
		buffer := pool.get(largeBufferSize + 1)
		if len(buffer.values) != largeBufferSize+1 {
			t.Errorf("Expected %d values, got %d", largeBufferSize+1, len(buffer.values))
		}
		buffer.Release()
		if got := pool.stats().Oversize; got != before+1 {
			t.Errorf("Expected oversize count %d, got %d", before+1, got)
		}
	})

	t.Run("Foreign Buffers Are Dropped", func(t *testing.T) {
		pool.put(&symbolBuffer{values: make([]int, 10)})
		pool.put(nil)
		buffer := pool.get(10)
		if cap(buffer.values) != smallBufferSize {
			t.Errorf("Expected pooled capacity %d, got %d", smallBufferSize, cap(buffer.values))
		}
	})

	t.Run("Concurrent Use", func(t *testing.T) {
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					buffer := pool.get(100 + g)
					for j := range buffer.values {
						buffer.values[j] = g
					}
					buffer.Release()
				}
			}(g)
		}
		wg.Wait()

		stats := pool.stats()
		if stats.Hits+stats.Misses <= 0 {
			t.Errorf("Expected pool activity, got %+v", stats)
		}
	})
}

func TestModemUsesPool(t *testing.T) {
	data := []byte("pooled buffers")
	m := NewModulator()
	d := NewDemodulator()

	// Reused buffers must not leak values between runs
	for i := 0; i < 3; i++ {
		signal, err := m.Modulate(data, 4)
		if err != nil {
			t.Fatalf("Modulate failed: %v", err)
		}
		out, err := d.Demodulate(signal, 4)
		if err != nil {
			t.Fatalf("Demodulate failed: %v", err)
		}
		if string(out) != string(data) {
			t.Errorf("Round %d: expected %q, got %q", i, data, out)
		}
		data = data[:len(data)-2]
	}

	if stats := BufferPoolStats(); stats.Hits+stats.Misses == 0 {
		t.Errorf("Expected the shared pool to be used, got %+v", stats)
	}
}
