// Package config loads the optional project file, vlgtrace.hcl, that tunes
// the build and simulation steps. Every attribute has a default, so a
// missing file or an empty block is valid.
//
//	build {
//	  source_dir         = "rtl"
//	  interrupt_target   = "top"
//	  range_order        = "descending"
//	}
//
//	simulation {
//	  data_dir       = "${cwd}/temp/sim"
//	  max_interrupts = 0
//	}
//
//	live {
//	  url                  = env.VLGTRACE_LIVE_URL
//	  insecure_skip_verify = false
//	}
//
// Expressions can read environment variables through env and the working
// directory through cwd.
package config
