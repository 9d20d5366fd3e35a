package krati_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krati-go/krati/pkg/krati"
)

func TestCreateSetSyncReopen(t *testing.T) {
	dir := t.TempDir()
	opts := krati.Options{
		Directory:    dir,
		SubArrayBits: 4,
		MaxEntrySize: 3,
		MaxEntries:   2,
		ElementWidth: krati.Width8,
	}

	arr, err := krati.Open(opts)
	require.NoError(t, err)

	require.NoError(t, arr.Set(0, 100, 1))
	require.NoError(t, arr.Set(5, 500, 2))
	require.NoError(t, arr.Sync())
	require.NoError(t, arr.Close())

	arr, err = krati.Open(opts)
	require.NoError(t, err)
	defer arr.Close()

	length, err := arr.Length()
	require.NoError(t, err)
	require.GreaterOrEqual(t, length, 16)

	v, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, int64(100), v)

	v, err = arr.Get(5)
	require.NoError(t, err)
	require.Equal(t, int64(500), v)

	lwm, err := arr.GetLWMark()
	require.NoError(t, err)
	hwm, err := arr.GetHWMark()
	require.NoError(t, err)
	require.Equal(t, uint64(2), lwm)
	require.Equal(t, uint64(2), hwm)
}

func TestCrashDiscardsMemoryKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	opts := krati.Options{Directory: dir, SubArrayBits: 4}

	arr, err := krati.Open(opts)
	require.NoError(t, err)
	require.NoError(t, arr.Set(0, 7, 10))
	require.NoError(t, arr.Set(0, 9, 11))

	// Simulate a crash as far as the ArrayFile is concerned: no Sync, and
	// Close only flushes the current Entry without applying it, so the
	// reopen has to recover the value from the surviving Entry file.
	require.NoError(t, arr.Close())

	arr, err = krati.Open(opts)
	require.NoError(t, err)
	defer arr.Close()

	v, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, int64(9), v)
}

func TestOutOfOrderScnIsADocumentedHazard(t *testing.T) {
	dir := t.TempDir()
	opts := krati.Options{Directory: dir, SubArrayBits: 4}

	arr, err := krati.Open(opts)
	require.NoError(t, err)

	require.NoError(t, arr.Set(0, 7, 10))
	require.NoError(t, arr.Set(0, 9, 11))
	require.NoError(t, arr.Set(0, 3, 5)) // scn regresses; still accepted

	v, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, int64(3), v, "last Set call wins in memory regardless of scn order")

	require.NoError(t, arr.Sync())
	hwm, err := arr.GetHWMark()
	require.NoError(t, err)
	require.Equal(t, uint64(11), hwm, "hwm never rolls back for an out-of-order scn")

	require.NoError(t, arr.Close())

	arr, err = krati.Open(opts)
	require.NoError(t, err)
	defer arr.Close()

	v, err = arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, int64(3), v, "Sync applied the records in append order, so the out-of-order write still wins")
}

func TestRolloverAppliesOldestEntryInline(t *testing.T) {
	dir := t.TempDir()
	opts := krati.Options{
		Directory:    dir,
		SubArrayBits: 4,
		MaxEntrySize: 3,
		MaxEntries:   2,
	}

	arr, err := krati.Open(opts)
	require.NoError(t, err)
	defer arr.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, arr.Set(i, int64(i*10), uint64(i+1)))
	}

	lwm, err := arr.GetLWMark()
	require.NoError(t, err)
	require.Equal(t, uint64(3), lwm, "the first 3-record Entry was applied inline on rollover")

	for i := 0; i < 5; i++ {
		v, err := arr.Get(i)
		require.NoError(t, err)
		require.Equal(t, int64(i*10), v)
	}
}

func TestLargeIndexGrowsLengthToNextSubArrayBoundary(t *testing.T) {
	dir := t.TempDir()
	opts := krati.Options{Directory: dir, SubArrayBits: 16}

	arr, err := krati.Open(opts)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(100000, 42, 1))

	length, err := arr.Length()
	require.NoError(t, err)
	require.Equal(t, 131072, length)

	v, err := arr.Get(100000)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	v, err = arr.Get(50000)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
}

func TestSaveHWMarkAdvancesAndSync(t *testing.T) {
	dir := t.TempDir()
	opts := krati.Options{Directory: dir, SubArrayBits: 4}

	arr, err := krati.Open(opts)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, 1, 10))

	require.NoError(t, arr.SaveHWMark(1000))
	hwm, err := arr.GetHWMark()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), hwm)

	require.NoError(t, arr.Sync())
	lwm, err := arr.GetLWMark()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), lwm)
}

func TestSyncIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	arr, err := krati.Open(krati.Options{Directory: dir, SubArrayBits: 4})
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, 1, 1))
	require.NoError(t, arr.Sync())
	lwm1, _ := arr.GetLWMark()

	require.NoError(t, arr.Sync())
	lwm2, _ := arr.GetLWMark()

	require.Equal(t, lwm1, lwm2)
}

func TestClearZeroesEveryCell(t *testing.T) {
	dir := t.TempDir()
	arr, err := krati.Open(krati.Options{Directory: dir, SubArrayBits: 4})
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(3, 33, 1))
	require.NoError(t, arr.Set(10, 99, 2))
	length, _ := arr.Length()

	require.NoError(t, arr.Clear())

	for i := 0; i < length; i++ {
		v, err := arr.Get(i)
		require.NoError(t, err)
		require.Equal(t, int64(0), v)
	}
}

func TestGetAndSetFailWhenNotOpen(t *testing.T) {
	dir := t.TempDir()
	arr, err := krati.Open(krati.Options{Directory: dir, SubArrayBits: 4})
	require.NoError(t, err)
	require.NoError(t, arr.Close())

	require.False(t, arr.IsOpen())

	_, err = arr.Get(0)
	require.ErrorIs(t, err, krati.ErrNotOpen)

	err = arr.Set(0, 1, 1)
	require.ErrorIs(t, err, krati.ErrNotOpen)
}

func TestGetOutOfRangeIndex(t *testing.T) {
	dir := t.TempDir()
	arr, err := krati.Open(krati.Options{Directory: dir, SubArrayBits: 4})
	require.NoError(t, err)
	defer arr.Close()

	length, _ := arr.Length()
	_, err = arr.Get(length)
	require.ErrorIs(t, err, krati.ErrIndexOutOfRange)
}
