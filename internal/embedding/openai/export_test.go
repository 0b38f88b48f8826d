// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package openai

import openaisdk "github.com/openai/openai-go"

// BuildParams exposes buildParams for white-box testing.
var BuildParams = func(input, model string, dimensions int) openaisdk.EmbeddingNewParams {
	return buildParams(input, model, dimensions)
}
