package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestKVStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStore()

	if _, err := kv.Get(ctx, "cart:guest"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := kv.Set(ctx, "cart:guest", []byte(`{"items":[]}`)); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	value, err := kv.Get(ctx, "cart:guest")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if string(value) != `{"items":[]}` {
		t.Fatalf("unexpected value: %s", value)
	}

	if err := kv.Remove(ctx, "cart:guest"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if _, err := kv.Get(ctx, "cart:guest"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after remove, got %v", err)
	}

	// Повторное удаление — no-op.
	if err := kv.Remove(ctx, "cart:guest"); err != nil {
		t.Fatalf("remove of absent key must be no-op, got %v", err)
	}
}

func TestKVStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStore()

	original := []byte("snapshot")
	if err := kv.Set(ctx, "orders", original); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	// Мутация исходного буфера не должна влиять на сохранённое значение.
	original[0] = 'X'

	value, err := kv.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if string(value) != "snapshot" {
		t.Fatalf("stored value mutated externally: %s", value)
	}

	value[0] = 'Y'
	again, _ := kv.Get(ctx, "orders")
	if string(again) != "snapshot" {
		t.Fatalf("returned value aliased internal buffer: %s", again)
	}
}
