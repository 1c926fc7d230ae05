// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

// version is stamped at build time via -ldflags.
var version = "dev"
