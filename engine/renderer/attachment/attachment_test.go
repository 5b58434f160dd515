package attachment

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAfterPublish(t *testing.T) {
	reg := NewRegistry()
	reg.Reset(1)

	_, err := reg.Resolve("resolved")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAttachment))

	reg.Publish("resolved", Attachment{Image: 7, Width: 640, Height: 480})
	a, err := reg.Resolve("resolved")
	require.NoError(t, err)
	assert.Equal(t, "resolved", a.Name)
	assert.Equal(t, gpu.Handle(7), a.Image)
	assert.Equal(t, uint32(640), a.Width)
}

func TestRepublishOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Publish("resolved", Attachment{Image: 1})
	reg.Publish("resolved", Attachment{Image: 2})

	a, err := reg.Resolve("resolved")
	require.NoError(t, err)
	assert.Equal(t, gpu.Handle(2), a.Image)
	assert.Equal(t, 2, reg.Publications("resolved"))
}

func TestResetClearsPublicationsButKeepsPersistent(t *testing.T) {
	reg := NewRegistry()
	reg.SetPersistent("position", Attachment{Image: 10})
	reg.Publish("resolved", Attachment{Image: 1})

	reg.Reset(2)
	assert.Equal(t, uint64(2), reg.Frame())
	assert.Equal(t, 0, reg.Publications("resolved"))

	_, err := reg.Resolve("resolved")
	assert.ErrorIs(t, err, ErrUnknownAttachment)

	p, err := reg.Resolve("position")
	require.NoError(t, err)
	assert.Equal(t, gpu.Handle(10), p.Image)
	assert.Equal(t, []string{"position"}, reg.Names())

	reg.RemovePersistent("position")
	_, err = reg.Resolve("position")
	assert.ErrorIs(t, err, ErrUnknownAttachment)
}

func TestPublicationShadowsPersistent(t *testing.T) {
	reg := NewRegistry()
	reg.SetPersistent("resolved", Attachment{Image: 10})
	reg.Publish("resolved", Attachment{Image: 11})

	a, err := reg.Resolve("resolved")
	require.NoError(t, err)
	assert.Equal(t, gpu.Handle(11), a.Image)
}

func TestPoolPingPong(t *testing.T) {
	dev := gputest.NewDevice()
	p := NewPool(dev, 320, 240)
	reg := NewRegistry()

	first, err := p.Acquire("resolved", reg)
	require.NoError(t, err)
	assert.Equal(t, uint32(320), first.Width)
	reg.Publish("resolved", FromTexture("resolved", first))

	second, err := p.Acquire("resolved", reg)
	require.NoError(t, err)
	assert.NotEqual(t, first.View, second.View, "must not render into the image being sampled")
	reg.Publish("resolved", FromTexture("resolved", second))

	third, err := p.Acquire("resolved", reg)
	require.NoError(t, err)
	assert.Equal(t, first.View, third.View)
	assert.Equal(t, 2, p.Allocated())
	assert.Equal(t, 2, dev.Count("CreateRenderTarget"))
}

func TestPoolPresentTarget(t *testing.T) {
	dev := gputest.NewDevice()
	p := NewPool(dev, 64, 64, WithPresentName("swapchain"))

	_, err := p.Acquire("swapchain", nil)
	assert.ErrorIs(t, err, ErrNoPresentTarget)

	p.SetPresentTarget(99)
	tex, err := p.Acquire("swapchain", nil)
	require.NoError(t, err)
	assert.Equal(t, gpu.Handle(99), tex.View)
	assert.Equal(t, 0, dev.Count("CreateRenderTarget"))
}

func TestPoolResizeReleasesTargets(t *testing.T) {
	dev := gputest.NewDevice()
	p := NewPool(dev, 64, 64)
	_, err := p.Acquire("a", nil)
	require.NoError(t, err)
	_, err = p.Acquire("b", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Live(gputest.KindTexture))

	p.Resize(128, 32)
	assert.Equal(t, 0, dev.Live(gputest.KindTexture))
	assert.Equal(t, 0, p.Allocated())

	tex, err := p.Acquire("a", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), tex.Width)
	assert.Equal(t, uint32(32), tex.Height)
}

func TestPoolAllocationFailure(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailOn("CreateRenderTarget", errors.New("out of memory"))
	p := NewPool(dev, 64, 64)
	_, err := p.Acquire("a", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}
