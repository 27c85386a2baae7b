// Package envflags resolves the environment-variable switches
// SPEC_FULL.md §6 lists (DISPLAY, __NV_FORCE_ENABLE_X11_EGL_PLATFORM,
// __NV_PRIME_RENDER_OFFLOAD, __NV_PRIME_RENDER_OFFLOAD_PROVIDER) once
// at Initialize. It borrows pflag's typed value parsing (accepting
// "1"/"0", "true"/"false", "t"/"f" as boolean) instead of hand-rolling
// a nonzero check, by feeding the environment through a FlagSet rather
// than argv.
package envflags

import (
	"os"

	"github.com/spf13/pflag"
)

// Settings holds the resolved value of every switch this adapter
// reads from the environment.
type Settings struct {
	Display              string
	ForceEnableX11Platform bool
	PrimeRenderOffload     bool
	PrimeRenderOffloadProvider string
}

// Resolve reads the process environment into a Settings, defaulting
// Display to ":0" when DISPLAY is unset, matching the original's
// fallback when no display name was passed to eglGetPlatformDisplay.
func Resolve() Settings {
	fs := pflag.NewFlagSet("eglx11env", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true

	display := fs.String("display", ":0", "default X display")
	force := fs.Bool("force-enable-x11-egl-platform", false, "bypass the NV-GLX server refusal check")
	offload := fs.Bool("prime-render-offload", false, "permit choosing a GPU other than the server's")
	provider := fs.String("prime-render-offload-provider", "", "DRM device node to force as the renderer")

	args := make([]string, 0, 4)
	args = appendIfSet(args, "--display", "DISPLAY")
	args = appendIfSet(args, "--force-enable-x11-egl-platform", "__NV_FORCE_ENABLE_X11_EGL_PLATFORM")
	args = appendIfSet(args, "--prime-render-offload", "__NV_PRIME_RENDER_OFFLOAD")
	args = appendIfSet(args, "--prime-render-offload-provider", "__NV_PRIME_RENDER_OFFLOAD_PROVIDER")

	// Parse errors here mean a malformed boolean value; SPEC_FULL.md §6
	// gives no guidance beyond "nonzero", so this falls back to the
	// flag's zero value rather than failing Initialize outright.
	_ = fs.Parse(args)

	return Settings{
		Display:                    *display,
		ForceEnableX11Platform:     *force,
		PrimeRenderOffload:         *offload,
		PrimeRenderOffloadProvider: *provider,
	}
}

func appendIfSet(args []string, flag, env string) []string {
	if v, ok := os.LookupEnv(env); ok {
		return append(args, flag+"="+v)
	}
	return args
}
