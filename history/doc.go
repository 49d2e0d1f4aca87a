// Copyright 2026 by HZXY DevOps Team
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

/*
Package history keeps the ledger of published app versions in a user-scoped
JSON file and recommends the next version to publish for an app.

The ledger is tolerant when loading: a missing file is an empty ledger. Saving
replaces the ledger file atomically, so concurrent readers never see a
half-written ledger.
*/
package history
