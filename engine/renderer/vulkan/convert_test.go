package vulkan

import (
	"sync"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNeverReusesHandles(t *testing.T) {
	r := newRegistry[string]()
	a := r.add("a")
	b := r.add("b")
	assert.NotEqual(t, a, b)

	v, ok := r.remove(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = r.get(a)
	assert.False(t, ok)
	c := r.add("c")
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, r.len())
}

func TestRegistryConcurrentAdd(t *testing.T) {
	r := newRegistry[int]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.add(i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, r.len())
}

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []gpu.Format{
		gpu.FormatB8G8R8A8Unorm,
		gpu.FormatB8G8R8A8Srgb,
		gpu.FormatR8G8B8A8Srgb,
		gpu.FormatD32Sfloat,
		gpu.FormatD24UnormS8Uint,
	} {
		assert.Equal(t, f, gpuFormat(vkFormat(f)), f.String())
	}
	assert.Equal(t, gpu.FormatUndefined, gpuFormat(vk.FormatR8Unorm))
}

func TestAspectFollowsFormat(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), vkAspect(gpu.FormatB8G8R8A8Srgb))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), vkAspect(gpu.FormatD32Sfloat))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), vkAspect(gpu.FormatD24UnormS8Uint))
}

func TestHighestSampleCount(t *testing.T) {
	mask := vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit)
	assert.Equal(t, uint32(8), highestSampleCount(mask))
	assert.Equal(t, uint32(1), highestSampleCount(vk.SampleCountFlags(vk.SampleCount1Bit)))
	assert.Equal(t, uint32(1), highestSampleCount(0))
	assert.Equal(t, vk.SampleCount1Bit, vkSamples(0))
	assert.Equal(t, vk.SampleCount4Bit, vkSamples(4))
}

func TestSubpassExternalMapsToVulkan(t *testing.T) {
	assert.Equal(t, uint32(vk.SubpassExternal), subpassIndex(gpu.SubpassExternal))
	assert.Equal(t, uint32(0), subpassIndex(0))
}

func TestToResult(t *testing.T) {
	cases := map[vk.Result]gpu.Result{
		vk.Success:                 gpu.Success,
		vk.Suboptimal:              gpu.Suboptimal,
		vk.ErrorOutOfDate:          gpu.OutOfDate,
		vk.Timeout:                 gpu.Timeout,
		vk.ErrorDeviceLost:         gpu.ErrorDeviceLost,
		vk.ErrorSurfaceLost:        gpu.ErrorSurfaceLost,
		vk.ErrorFormatNotSupported: gpu.ErrorUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, toResult(in), VulkanResultString(in))
	}
}

func TestNewErrorMatchesResult(t *testing.T) {
	err := newError("vkQueueSubmit", vk.ErrorDeviceLost)
	assert.True(t, errors.Is(err, gpu.ErrorDeviceLost))
	assert.Contains(t, err.Error(), "vkQueueSubmit")
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
	assert.Equal(t, "\x00", VulkanSafeString(""))

	in := []string{"a", "b"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, []string{"a", "b"}, in)

	name := make([]byte, 16)
	copy(name, "VK_LAYER_X")
	assert.Equal(t, "VK_LAYER_X", cString(name))
	assert.Equal(t, "abc", cString([]byte("abc")))
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000}, words)

	_, err = spirvWords([]byte{0x03, 0x02, 0x23})
	assert.Error(t, err)
	_, err = spirvWords(nil)
	assert.Error(t, err)
	_, err = spirvWords([]byte{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestBufferWriteBounds(t *testing.T) {
	mem := make([]byte, 8)
	b := &buffer{size: 8, mapped: unsafe.Pointer(&mem[0])}
	require.NoError(t, b.write(2, []byte{1, 2, 3}))
	assert.Equal(t, []byte{0, 0, 1, 2, 3, 0, 0, 0}, mem)
	assert.Error(t, b.write(6, []byte{1, 2, 3}))
	assert.NoError(t, b.write(8, nil))
}
