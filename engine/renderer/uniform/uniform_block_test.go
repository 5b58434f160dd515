package uniform

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sceneBlock(t *testing.T, dev *gputest.Device) Block {
	t.Helper()
	b, err := NewBlock(dev, "UboScene", []FieldSpec{
		{Name: "projection", Size: 64},
		{Name: "view", Size: 64},
		{Name: "cameraPosition", Size: 12},
	})
	require.NoError(t, err)
	return b
}

func TestLayoutIsDeclarationOrder(t *testing.T) {
	dev := gputest.NewDevice()
	b := sceneBlock(t, dev)

	assert.Equal(t, []Field{
		{Name: "projection", Offset: 0, Size: 64},
		{Name: "view", Offset: 64, Size: 64},
		{Name: "cameraPosition", Offset: 128, Size: 12},
	}, b.Fields())
	assert.Equal(t, uint64(140), b.Size())
	assert.Equal(t, uint64(144), b.BufferSize())

	obj, ok := dev.Object(b.Buffer())
	require.True(t, ok)
	assert.Equal(t, uint64(144), obj.Size)
}

func TestPushReadBackRoundTrip(t *testing.T) {
	b := sceneBlock(t, gputest.NewDevice())

	pos := mgl32.Vec3{1, 2, 3}
	require.NoError(t, b.PushVec3("cameraPosition", pos))
	got, err := b.Field("cameraPosition")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, common.BytesToFloat32s(got))

	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	require.NoError(t, b.PushMat4("projection", proj))
	got, err = b.Field("projection")
	require.NoError(t, err)
	assert.Equal(t, proj[:], common.BytesToFloat32s(got))

	all := b.Bytes()
	assert.Len(t, all, 140)
	assert.Equal(t, got, all[0:64])
}

func TestPushSizeMismatch(t *testing.T) {
	b := sceneBlock(t, gputest.NewDevice())

	err := b.Push("cameraPosition", make([]byte, 16))
	assert.ErrorIs(t, err, ErrFieldSizeMismatch)
	err = b.PushVec4("cameraPosition", mgl32.Vec4{})
	assert.ErrorIs(t, err, ErrFieldSizeMismatch)

	err = b.Push("missing", make([]byte, 4))
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = b.Field("missing")
	assert.ErrorIs(t, err, ErrUnknownField)

	assert.False(t, b.Dirty(), "failed pushes must not dirty the block")
}

func TestIdenticalPushDoesNotDirty(t *testing.T) {
	dev := gputest.NewDevice()
	b := sceneBlock(t, dev)

	require.NoError(t, b.PushVec3("cameraPosition", mgl32.Vec3{0, 0, 0}))
	assert.False(t, b.Dirty())

	require.NoError(t, b.PushVec3("cameraPosition", mgl32.Vec3{1, 0, 0}))
	assert.True(t, b.Dirty())
	b.Flush(dev)
	assert.False(t, b.Dirty())

	require.NoError(t, b.PushVec3("cameraPosition", mgl32.Vec3{1, 0, 0}))
	assert.False(t, b.Dirty())
}

func TestWritesCoalesceAndFlushUploads(t *testing.T) {
	dev := gputest.NewDevice()
	b := sceneBlock(t, dev)

	require.NoError(t, b.PushMat4("view", mgl32.Ident4()))
	require.NoError(t, b.PushVec3("cameraPosition", mgl32.Vec3{4, 5, 6}))

	writes := b.Writes()
	require.Len(t, writes, 1, "adjacent ranges merge")
	assert.Equal(t, uint64(64), writes[0].Offset)
	assert.Len(t, writes[0].Data, 76)

	b.Flush(dev)
	contents := dev.BufferContents(b.Buffer())
	assert.Equal(t, b.Bytes(), contents[:140])
	assert.Nil(t, b.Writes())
}

func TestNewBlockRejectsBadFields(t *testing.T) {
	dev := gputest.NewDevice()

	_, err := NewBlock(dev, "empty", nil)
	assert.Error(t, err)
	_, err = NewBlock(dev, "dup", []FieldSpec{{Name: "a", Size: 4}, {Name: "a", Size: 4}})
	assert.Error(t, err)
	_, err = NewBlock(dev, "zero", []FieldSpec{{Name: "a", Size: 0}})
	assert.Error(t, err)
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
}

func TestRelease(t *testing.T) {
	dev := gputest.NewDevice()
	b := sceneBlock(t, dev)
	assert.Equal(t, 1, dev.Live(gputest.KindBuffer))
	b.Release()
	b.Release()
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
}
